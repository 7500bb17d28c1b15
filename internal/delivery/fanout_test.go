package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/scriptdesk/internal/types"
)

type sleepLog struct {
	delays []time.Duration
	err    error
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}

func newTestFanOut(t *testing.T) (*FanOut, *recordingTransport, *recordingTransport, *sleepLog) {
	t.Helper()
	reg := NewRegistry()
	wa := &recordingTransport{fail: map[int]error{}}
	tg := &recordingTransport{fail: map[int]error{}}
	reg.Register("whatsapp", wa)
	reg.Register("telegram", tg)
	s := &sleepLog{}
	f := NewFanOut(reg, WithSleep(s.sleep), WithTextPacing(time.Second), WithRetryPolicy(&RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     time.Second,
	}))
	return f, wa, tg, s
}

func TestFanOutOrderAndPacing(t *testing.T) {
	f, wa, tg, s := newTestFanOut(t)

	report := f.Send(context.Background(), []types.Delivery{
		types.TextDelivery("whatsapp:dist", "heading"),
		types.TextDelivery("whatsapp:dist", "chunk 1"),
		types.TextDelivery("whatsapp:dist", "chunk 2"),
		types.TextDelivery("telegram:7", "visuals"),
		types.ReactionDelivery("whatsapp:intake", "m1", "✅"),
	})

	if report.Sent != 5 || report.Failed != 0 {
		t.Fatalf("expected 5 sent, got %+v", report)
	}
	if len(wa.calls) != 4 || len(tg.calls) != 1 {
		t.Fatalf("unexpected call counts wa=%d tg=%d", len(wa.calls), len(tg.calls))
	}
	want := []string{"heading", "chunk 1", "chunk 2", "m1 ✅"}
	for i, w := range want {
		if wa.calls[i].body != w {
			t.Errorf("call %d: expected %q, got %q", i, w, wa.calls[i].body)
		}
	}
	// Pacing applies only between consecutive texts to the same channel.
	if len(s.delays) != 2 {
		t.Errorf("expected 2 pacing sleeps, got %v", s.delays)
	}
}

func TestFanOutSkipsFailedDelivery(t *testing.T) {
	f, wa, _, _ := newTestFanOut(t)
	wa.fail[1] = errors.New("invalid recipient")

	report := f.Send(context.Background(), []types.Delivery{
		types.TextDelivery("whatsapp:dist", "first"),
		types.TextDelivery("whatsapp:dist", "second"),
	})

	if report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("expected 1 sent 1 failed, got %+v", report)
	}
	if report.Results[0].Attempts != 1 {
		t.Errorf("permanent error should not be retried, got %d attempts", report.Results[0].Attempts)
	}
	if report.Err() == nil {
		t.Error("expected report error")
	}
	if wa.calls[1].body != "second" {
		t.Error("expected second delivery to still be sent")
	}
}

func TestFanOutRetriesTransientError(t *testing.T) {
	f, wa, _, s := newTestFanOut(t)
	wa.fail[1] = errors.New("connection reset by peer")

	report := f.Send(context.Background(), []types.Delivery{
		types.TextDelivery("whatsapp:dist", "hello"),
	})

	if report.Sent != 1 {
		t.Fatalf("expected delivery to succeed on retry, got %+v", report)
	}
	if report.Results[0].Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", report.Results[0].Attempts)
	}
	if len(s.delays) != 1 || s.delays[0] != 10*time.Millisecond {
		t.Errorf("expected one backoff sleep, got %v", s.delays)
	}
}

func TestFanOutUnknownTransport(t *testing.T) {
	f, wa, _, _ := newTestFanOut(t)

	report := f.Send(context.Background(), []types.Delivery{
		types.TextDelivery("slack:C1", "lost"),
		types.TextDelivery("whatsapp:dist", "kept"),
	})
	if report.Failed != 1 || report.Sent != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Results[0].Attempts != 1 {
		t.Errorf("missing transport should not be retried, got %d attempts", report.Results[0].Attempts)
	}
	if len(wa.calls) != 1 {
		t.Errorf("expected 1 whatsapp call, got %d", len(wa.calls))
	}
}

func TestFanOutAudioOptions(t *testing.T) {
	f, _, tg, _ := newTestFanOut(t)

	f.Send(context.Background(), []types.Delivery{
		types.AudioDelivery("telegram:7", []byte("ogg"), true, "note.ogg"),
	})
	if len(tg.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(tg.calls))
	}
	opts := tg.calls[0].opts
	if !opts.PushToTalk || opts.FileName != "note.ogg" || opts.MimeType != "audio/ogg; codecs=opus" {
		t.Errorf("unexpected audio options %+v", opts)
	}
}

func TestFanOutCancelled(t *testing.T) {
	f, wa, _, _ := newTestFanOut(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.Send(ctx, []types.Delivery{
		types.TextDelivery("whatsapp:dist", "a"),
		types.TextDelivery("whatsapp:dist", "b"),
	})
	if report.Failed != 2 || len(wa.calls) != 0 {
		t.Errorf("expected nothing sent after cancel, got %+v calls=%d", report, len(wa.calls))
	}
}

func TestFanOutPacingInterrupted(t *testing.T) {
	f, wa, _, s := newTestFanOut(t)
	s.err = context.Canceled

	report := f.Send(context.Background(), []types.Delivery{
		types.TextDelivery("whatsapp:dist", "a"),
		types.TextDelivery("whatsapp:dist", "b"),
		types.TextDelivery("whatsapp:dist", "c"),
	})
	if report.Sent != 1 || report.Failed != 2 {
		t.Errorf("expected 1 sent and 2 abandoned, got %+v", report)
	}
	if len(wa.calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(wa.calls))
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("zero sleep: %v", err)
	}
}

// splittingTransport cuts text into fixed-size parts like a transport with
// a message size limit.
type splittingTransport struct {
	recordingTransport
	size int
}

func (s *splittingTransport) SplitText(body string) []string {
	var parts []string
	for len(body) > s.size {
		parts = append(parts, body[:s.size])
		body = body[s.size:]
	}
	return append(parts, body)
}

func TestFanOutRetriesOnlyTheFailedPart(t *testing.T) {
	reg := NewRegistry()
	tr := &splittingTransport{recordingTransport: recordingTransport{fail: map[int]error{
		2: errors.New("429 too many requests"),
	}}, size: 4}
	reg.Register("telegram", tr)
	f := NewFanOut(reg, WithSleep((&sleepLog{}).sleep))

	report := f.Send(context.Background(), []types.Delivery{types.TextDelivery("telegram:1", "aaaabbbbcc")})
	if report.Sent != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	var bodies []string
	for _, c := range tr.calls {
		bodies = append(bodies, c.body)
	}
	want := []string{"aaaa", "bbbb", "bbbb", "cc"}
	if len(bodies) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, bodies)
	}
	for i := range want {
		if bodies[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i+1, want[i], bodies[i])
		}
	}
	if report.Results[0].Attempts != 4 {
		t.Errorf("expected 4 attempts across parts, got %d", report.Results[0].Attempts)
	}
}

func TestFanOutStopsAtFailedPart(t *testing.T) {
	reg := NewRegistry()
	tr := &splittingTransport{recordingTransport: recordingTransport{fail: map[int]error{
		1: errors.New("chat not found"),
	}}, size: 2}
	reg.Register("telegram", tr)
	f := NewFanOut(reg, WithSleep((&sleepLog{}).sleep))

	report := f.Send(context.Background(), []types.Delivery{types.TextDelivery("telegram:1", "aabbcc")})
	if report.Failed != 1 || len(tr.calls) != 1 {
		t.Errorf("expected one failed call and no further parts, got %+v calls=%d", report, len(tr.calls))
	}
}
