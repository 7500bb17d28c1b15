package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/user/scriptdesk/internal/types"
)

// DefaultTextPacing is the pause between consecutive text deliveries to
// one channel.
const DefaultTextPacing = time.Second

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Result records the outcome of one delivery.
type Result struct {
	Delivery types.Delivery
	Attempts int
	Err      error
}

// Report summarizes a fan-out.
type Report struct {
	Results []Result
	Sent    int
	Failed  int
}

// Err returns the first delivery error, or nil.
func (r Report) Err() error {
	for _, res := range r.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// FanOut sends ordered deliveries through the registry's transports.
type FanOut struct {
	registry *Registry
	retry    *RetryPolicy
	pacing   time.Duration
	sleep    SleepFunc
	logger   *slog.Logger
}

// Option configures a FanOut.
type Option func(*FanOut)

// WithTextPacing overrides DefaultTextPacing.
func WithTextPacing(d time.Duration) Option {
	return func(f *FanOut) { f.pacing = d }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(f *FanOut) { f.retry = p }
}

// WithSleep replaces the context-aware sleep, for tests.
func WithSleep(fn SleepFunc) Option {
	return func(f *FanOut) { f.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *FanOut) { f.logger = l }
}

// NewFanOut creates a FanOut over registry.
func NewFanOut(registry *Registry, opts ...Option) *FanOut {
	f := &FanOut{
		registry: registry,
		retry:    DefaultRetryPolicy(),
		pacing:   DefaultTextPacing,
		sleep:    Sleep,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "delivery")
	return f
}

// Send delivers each item strictly in order. A delivery that fails after
// retries is logged and skipped; the rest are still attempted. Send stops
// early only when ctx is cancelled.
func (f *FanOut) Send(ctx context.Context, deliveries []types.Delivery) Report {
	var (
		report   Report
		lastText types.ChannelID
	)
	abandon := func(rest []types.Delivery, err error) {
		for _, d := range rest {
			report.Results = append(report.Results, Result{Delivery: d, Err: err})
			report.Failed++
		}
		f.logger.Warn("fan-out interrupted", "remaining", len(rest), "error", err)
	}

	for i, d := range deliveries {
		if err := ctx.Err(); err != nil {
			abandon(deliveries[i:], err)
			break
		}

		if d.Kind == types.DeliveryText {
			if lastText == d.Channel {
				if err := f.sleep(ctx, f.pacing); err != nil {
					abandon(deliveries[i:], err)
					break
				}
			}
			lastText = d.Channel
		}

		res := Result{Delivery: d}
		res.Attempts, res.Err = f.deliver(ctx, d)
		if res.Err != nil {
			report.Failed++
			f.logger.Error("delivery failed", "kind", string(d.Kind), "channel", string(d.Channel), "attempts", res.Attempts, "error", res.Err)
		} else {
			report.Sent++
			f.logger.Debug("delivered", "kind", string(d.Kind), "channel", string(d.Channel))
		}
		report.Results = append(report.Results, res)
	}
	return report
}

// deliver sends d with retries. Text for a TextSplitter transport is sent
// part by part, so a retry never repeats a part that already went out.
func (f *FanOut) deliver(ctx context.Context, d types.Delivery) (int, error) {
	t, err := f.registry.Resolve(d.Channel)
	if err != nil {
		return 1, err
	}
	splitter, ok := t.(types.TextSplitter)
	if d.Kind != types.DeliveryText || !ok {
		return f.retry.Execute(ctx, f.sleep, func() error { return send(ctx, t, d) })
	}

	total := 0
	for _, part := range splitter.SplitText(d.Body) {
		n, err := f.retry.Execute(ctx, f.sleep, func() error {
			return t.SendText(ctx, d.Channel, part)
		})
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func send(ctx context.Context, t types.Transport, d types.Delivery) error {
	switch d.Kind {
	case types.DeliveryText:
		return t.SendText(ctx, d.Channel, d.Body)
	case types.DeliveryAudio:
		return t.SendAudio(ctx, d.Channel, d.Audio, types.AudioOptions{
			PushToTalk: d.PushToTalk,
			FileName:   d.FileName,
			MimeType:   mimeFor(d.FileName),
		})
	case types.DeliveryReaction:
		return t.SendReaction(ctx, d.Channel, d.TargetMessageID, d.Emoji)
	default:
		return fmt.Errorf("unknown delivery kind: %q", d.Kind)
	}
}

func mimeFor(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".ogg", ".opus":
		return "audio/ogg; codecs=opus"
	case ".wav":
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
