package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/user/scriptdesk/internal/types"
)

// Job is a named message injected into a channel on a schedule or via
// webhook, processed as if a user had sent it.
type Job struct {
	Name     string          `json:"name"`
	Text     string          `json:"text"`
	Schedule string          `json:"schedule,omitempty"`
	Channel  types.ChannelID `json:"channel"`
	Enabled  bool            `json:"enabled"`
}

// Event builds the synthetic inbound event the job injects. text
// overrides the job's text when non-empty.
func (j *Job) Event(source, text string) *types.InboundEvent {
	if text == "" {
		text = j.Text
	}
	return &types.InboundEvent{
		Source:    source,
		ChannelID: j.Channel,
		SenderID:  "job:" + j.Name,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// JobStore is a JSON-file-backed store for jobs.
type JobStore struct {
	path string
	mu   sync.RWMutex
}

// NewJobStore creates a new file-backed JobStore at the given file path.
func NewJobStore(path string) *JobStore {
	return &JobStore{path: path}
}

// Path returns the file path used by this store.
func (s *JobStore) Path() string {
	return s.path
}

// List returns all jobs. Returns an empty slice if the file doesn't exist.
func (s *JobStore) List() ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs, err := s.load()
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		return []*Job{}, nil
	}
	return jobs, nil
}

// Get finds a job by name.
func (s *JobStore) Get(name string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.Name == name {
			return job, nil
		}
	}
	return nil, fmt.Errorf("job not found: %s", name)
}

// Add appends a job. Names are unique.
func (s *JobStore) Add(job *Job) error {
	if job.Name == "" || job.Text == "" || job.Channel == "" {
		return fmt.Errorf("job requires name, text and channel")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("job already exists: %s", job.Name)
		}
	}
	return s.save(append(jobs, job))
}

// Remove deletes a job by name.
func (s *JobStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.load()
	if err != nil {
		return err
	}
	for i, job := range jobs {
		if job.Name == name {
			return s.save(append(jobs[:i], jobs[i+1:]...))
		}
	}
	return fmt.Errorf("job not found: %s", name)
}

// SetEnabled toggles the enabled flag for a job.
func (s *JobStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.load()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.Name == name {
			job.Enabled = enabled
			return s.save(jobs)
		}
	}
	return fmt.Errorf("job not found: %s", name)
}

func (s *JobStore) load() ([]*Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	var jobs []*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("unmarshal jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) save(jobs []*Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal jobs: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	return nil
}
