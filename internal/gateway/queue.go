package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/scriptdesk/internal/types"
)

var (
	// ErrQueueStopped is returned by Enqueue before Start or after Stop.
	ErrQueueStopped = errors.New("queue stopped")
	// ErrLaneFull is returned when a channel already has laneDepth runs waiting.
	ErrLaneFull = errors.New("lane full")
)

const laneDepth = 100

// lane is one channel's FIFO of pending runs, drained by its own goroutine.
type lane struct {
	channel types.ChannelID
	pending chan *Run
}

// Queue serialises runs per channel and caps how many run at once across
// all channels.
type Queue struct {
	slots   *semaphore.Weighted
	handle  func(*Run) error
	logger  *slog.Logger
	running atomic.Int64

	mu     sync.Mutex
	lanes  map[types.ChannelID]*lane
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue returns a Queue running at most maxConcurrent runs at a time.
// Values below 1 are treated as 1.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		slots:  semaphore.NewWeighted(max(maxConcurrent, 1)),
		lanes:  make(map[types.ChannelID]*lane),
		logger: slog.Default(),
	}
}

// SetProcessor sets the function each dequeued run is passed to.
func (q *Queue) SetProcessor(fn func(*Run) error) {
	q.handle = fn
}

// Start binds the queue to ctx. Runs are accepted from here on.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop rejects new runs, closes every lane and waits for the lane
// goroutines to exit. Runs still waiting in a lane are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	if !q.closed {
		q.closed = true
		for _, l := range q.lanes {
			close(l.pending)
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue appends run to its channel's lane.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.ctx == nil {
		return ErrQueueStopped
	}

	l := q.lanes[run.ChannelID]
	if l == nil {
		l = &lane{channel: run.ChannelID, pending: make(chan *Run, laneDepth)}
		q.lanes[run.ChannelID] = l
		q.wg.Add(1)
		go q.drain(l)
	}

	select {
	case l.pending <- run:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrLaneFull, run.ChannelID)
	}
}

func (q *Queue) drain(l *lane) {
	defer q.wg.Done()
	for run := range l.pending {
		if q.ctx.Err() != nil {
			return
		}
		if err := q.slots.Acquire(q.ctx, 1); err != nil {
			return
		}
		q.exec(l, run)
		q.slots.Release(1)
	}
}

func (q *Queue) exec(l *lane, run *Run) {
	if q.handle == nil {
		return
	}
	q.running.Add(1)
	defer q.running.Add(-1)
	run.Ctx = q.ctx
	if err := q.handle(run); err != nil {
		q.logger.Error("run failed", "run_id", run.ID, "channel", l.channel, "error", err)
	}
}

// Active reports how many runs are executing right now.
func (q *Queue) Active() int64 {
	return q.running.Load()
}

// WaitIdle polls until no run is executing. It returns false if timeout
// passes first.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for q.running.Load() != 0 {
		if time.Now().After(deadline) {
			return false
		}
		<-tick.C
	}
	return true
}
