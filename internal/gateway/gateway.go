// Package gateway accepts inbound events from the transports, queues them
// on per-channel lanes and runs each through dispatch and delivery.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/user/scriptdesk/internal/delivery"
	"github.com/user/scriptdesk/internal/dispatch"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
)

// Planner turns an event into deliveries.
type Planner interface {
	Plan(ctx context.Context, ev *types.InboundEvent) dispatch.Outcome
}

// Sender delivers an ordered list of deliveries.
type Sender interface {
	Send(ctx context.Context, deliveries []types.Delivery) delivery.Report
}

// Recorder persists run outcomes.
type Recorder interface {
	Append(ctx context.Context, entry *state.JournalEntry) error
}

// Gateway orchestrates inbound events into runs.
type Gateway struct {
	planner Planner
	sender  Sender
	journal Recorder
	logger  *slog.Logger
	Queue   *Queue

	cancel context.CancelFunc
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithJournal records every finished run.
func WithJournal(r Recorder) Option {
	return func(g *Gateway) { g.journal = r }
}

// WithMaxConcurrent bounds the number of pipelines running at once.
func WithMaxConcurrent(n int64) Option {
	return func(g *Gateway) { g.Queue = NewQueue(n) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway. The default concurrency limit is 2.
func New(planner Planner, sender Sender, opts ...Option) *Gateway {
	g := &Gateway{
		planner: planner,
		sender:  sender,
		logger:  slog.Default(),
		Queue:   NewQueue(2),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")
	g.Queue.logger = g.logger
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked after the run's deliveries are sent.
func WithOnComplete(fn func(*Run)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// HandleInbound enqueues the event on its channel's lane.
func (g *Gateway) HandleInbound(ctx context.Context, event *types.InboundEvent) error {
	_, err := g.Submit(ctx, event)
	return err
}

// Submit enqueues the event and returns the ID of the run created for it.
func (g *Gateway) Submit(_ context.Context, event *types.InboundEvent, opts ...RunOption) (types.RunID, error) {
	if event == nil || event.ChannelID == "" {
		return "", errors.New("event has no channel")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	run := NewRun(event)
	for _, opt := range opts {
		opt(run)
	}
	if err := g.Queue.Enqueue(run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (g *Gateway) process(run *Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = types.WithRunID(ctx, run.ID)
	started := time.Now()
	run.StartedAt = &started
	run.Status = RunStatusRunning

	out := g.planner.Plan(ctx, run.Event)
	run.Path = string(out.Path)
	run.Intent = string(out.Intent.Kind)
	run.Error = out.Err

	if len(out.Deliveries) > 0 {
		report := g.sender.Send(ctx, out.Deliveries)
		run.Sent, run.Failed = report.Sent, report.Failed
		if run.Error == nil {
			run.Error = report.Err()
		}
	}

	ended := time.Now()
	run.EndedAt = &ended
	run.Status = RunStatusComplete
	if run.Error != nil {
		run.Status = RunStatusFailed
	}

	if out.Path != dispatch.PathIgnored {
		g.logger.Info("run finished",
			"run_id", string(run.ID),
			"channel", string(run.ChannelID),
			"path", run.Path,
			"intent", run.Intent,
			"sent", run.Sent,
			"failed", run.Failed,
			"duration", run.Duration(),
		)
		g.record(ctx, run, len(out.Deliveries))
	}

	if run.OnComplete != nil {
		run.OnComplete(run)
	}
	return nil
}

func (g *Gateway) record(ctx context.Context, run *Run, deliveries int) {
	if g.journal == nil {
		return
	}
	entry := &state.JournalEntry{
		RunID:      run.ID,
		ChannelID:  run.ChannelID,
		MessageID:  run.Event.MessageID,
		Source:     run.Event.Source,
		Intent:     run.Intent,
		Path:       run.Path,
		Deliveries: deliveries,
		Sent:       run.Sent,
		Duration:   run.Duration(),
		At:         *run.EndedAt,
	}
	if run.Error != nil {
		entry.Failure = run.Error.Error()
	}
	// The run context may already be cancelled during shutdown.
	if err := g.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
		g.logger.Warn("journal append failed", "run_id", string(run.ID), "error", err)
	}
}
