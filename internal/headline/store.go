// Package headline keeps the most recent numbered headline list per
// channel so a later "pick by number" message can refer to it.
package headline

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/user/scriptdesk/internal/types"
)

// DefaultTTL is how long a fetched agenda stays selectable.
const DefaultTTL = time.Hour

var (
	ErrSessionMissing      = errors.New("no headline session for channel")
	ErrSessionExpired      = errors.New("headline session expired")
	ErrSelectionOutOfRange = errors.New("headline selection out of range")
)

// Session is the headline list most recently fetched on a channel.
type Session struct {
	ChannelID types.ChannelID `json:"channel_id"`
	Headlines []string        `json:"headlines"`
	CreatedAt time.Time       `json:"created_at"`
}

// Select returns the headline at the 1-based index.
func (s *Session) Select(index int) (string, error) {
	if index < 1 || index > len(s.Headlines) {
		return "", ErrSelectionOutOfRange
	}
	return s.Headlines[index-1], nil
}

// Store holds one Session per channel in memory.
type Store struct {
	mu       sync.Mutex
	sessions map[types.ChannelID]*Session
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[types.ChannelID]*Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put replaces the channel's session with a new one.
func (s *Store) Put(channel types.ChannelID, headlines []string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		ChannelID: channel,
		Headlines: append([]string(nil), headlines...),
		CreatedAt: s.now(),
	}
	s.sessions[channel] = sess
	return sess
}

// Get returns the channel's session. A session older than the TTL is
// deleted and reported as ErrSessionExpired.
func (s *Store) Get(channel types.ChannelID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[channel]
	if !ok {
		return nil, ErrSessionMissing
	}
	if s.expired(sess) {
		delete(s.sessions, channel)
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Expire removes every expired session and returns how many were removed.
func (s *Store) Expire() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for ch, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, ch)
			n++
		}
	}
	return n
}

// List returns all sessions, including expired ones not yet swept.
func (s *Store) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Store) expired(sess *Session) bool {
	return s.now().Sub(sess.CreatedAt) > s.ttl
}

var (
	numberedLine = regexp.MustCompile(`^\s*\d+\s*[.)]`)
	numberPrefix = regexp.MustCompile(`^\s*\d+\s*[.)]\s*`)
)

// Parse extracts the numbered lines ("1. ...") from text in order.
func Parse(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if numberedLine.MatchString(line) {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// StripNumber removes the leading "N." from a headline line.
func StripNumber(line string) string {
	return strings.TrimSpace(numberPrefix.ReplaceAllString(line, ""))
}
