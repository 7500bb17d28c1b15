package gateway

import (
	"context"
	"time"

	"github.com/user/scriptdesk/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks the processing of one inbound event.
type Run struct {
	ID        types.RunID
	ChannelID types.ChannelID
	Event     *types.InboundEvent
	Status    RunStatus
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Path      string
	Intent    string
	Sent      int
	Failed    int
	Error     error

	// Ctx is set by the queue before the processor runs.
	Ctx        context.Context
	OnComplete func(*Run)
}

// NewRun creates a Run in the Queued state for the given event.
func NewRun(event *types.InboundEvent) *Run {
	return &Run{
		ID:        types.NewRunID(),
		ChannelID: event.ChannelID,
		Event:     event,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Duration returns how long the run took, or zero if it has not ended.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(*r.StartedAt)
}
