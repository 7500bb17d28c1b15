// Package scheduler fires stored jobs on their cron schedules and runs
// periodic maintenance.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/user/scriptdesk/internal/state"
)

// Handler is the callback invoked when a scheduled job fires.
type Handler func(job *state.Job)

type maintenance struct {
	name string
	spec string
	fn   func()
}

// Scheduler evaluates cron expressions from the job store and fires jobs
// through a handler callback.
type Scheduler struct {
	store   *state.JobStore
	handler Handler
	logger  *slog.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	tasks []maintenance
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether spec is a schedule the scheduler accepts.
func ValidateSchedule(spec string) error {
	_, err := cronParser.Parse(spec)
	return err
}

// New creates a new Scheduler backed by the given job store. The handler is
// called each time a scheduled job fires.
func New(store *state.JobStore, handler Handler, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		handler: handler,
		logger:  logger.With("component", "scheduler"),
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Every registers a maintenance function that runs on spec (e.g.
// "@every 10m"). It survives Reload.
func (s *Scheduler) Every(name, spec string, fn func()) error {
	if err := ValidateSchedule(spec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, maintenance{name: name, spec: spec, fn: fn})
	return nil
}

// Start loads jobs from the store, registers enabled jobs that have a
// schedule as cron entries, and starts the cron ticker.
func (s *Scheduler) Start() error {
	jobs, err := s.store.List()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		if job.Schedule == "" || !job.Enabled {
			continue
		}
		job := job
		_, err := s.cron.AddFunc(job.Schedule, func() {
			s.logger.Info("cron firing job", "name", job.Name, "channel", string(job.Channel))
			s.handler(job)
		})
		if err != nil {
			s.logger.Error("invalid cron schedule", "name", job.Name, "schedule", job.Schedule, "error", err)
			continue
		}
		s.logger.Info("scheduled job", "name", job.Name, "schedule", job.Schedule)
	}

	for _, t := range s.tasks {
		if _, err := s.cron.AddFunc(t.spec, t.fn); err != nil {
			s.logger.Error("invalid maintenance schedule", "name", t.name, "schedule", t.spec, "error", err)
		}
	}

	s.cron.Start()
	return nil
}

// Reload replaces every cron entry with a fresh read of the job store.
// It must not be called from inside a job or maintenance function.
func (s *Scheduler) Reload() error {
	s.mu.Lock()
	<-s.cron.Stop().Done()
	s.cron = cron.New(cron.WithParser(cronParser))
	s.mu.Unlock()
	return s.Start()
}

// Watch polls the job file every interval and reloads when its
// modification time changes, so jobs edited by another process take
// effect without a restart. It returns when ctx is done.
func (s *Scheduler) Watch(ctx context.Context, interval time.Duration) {
	last := s.jobsModTime()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		mod := s.jobsModTime()
		if mod.Equal(last) {
			continue
		}
		last = mod
		if err := s.Reload(); err != nil {
			s.logger.Error("reload jobs failed", "error", err)
			continue
		}
		s.logger.Info("jobs reloaded", "path", s.store.Path())
	}
}

func (s *Scheduler) jobsModTime() time.Time {
	info, err := os.Stat(s.store.Path())
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Stop stops the cron ticker and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	<-c.Stop().Done()
}
