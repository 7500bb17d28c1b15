package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/scriptdesk/internal/types"
)

// JournalEntry records the outcome of one processed inbound event.
type JournalEntry struct {
	RunID      types.RunID     `json:"run_id"`
	ChannelID  types.ChannelID `json:"channel_id"`
	MessageID  types.MessageID `json:"message_id,omitempty"`
	Source     string          `json:"source"`
	Intent     string          `json:"intent"`
	Path       string          `json:"path"`
	Deliveries int             `json:"deliveries"`
	Sent       int             `json:"sent"`
	Failure    string          `json:"failure,omitempty"`
	Duration   time.Duration   `json:"duration_ns"`
	At         time.Time       `json:"at"`
}

// Journal is a JSONL-backed append-only log of dispatch outcomes stored at
// journal.jsonl under the data directory.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal creates a journal rooted at the given directory.
func NewJournal(root string) *Journal {
	return &Journal{path: filepath.Join(root, "journal.jsonl")}
}

// Append adds an entry to the journal.
func (j *Journal) Append(_ context.Context, entry *JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// Tail returns the last limit entries, optionally only those for channel.
// limit <= 0 returns every matching entry.
func (j *Journal) Tail(_ context.Context, channel types.ChannelID, limit int) ([]*JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var entries []*JournalEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal journal entry: %w", err)
		}
		if channel != "" && entry.ChannelID != channel {
			continue
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
