package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/scriptdesk/internal/command"
	"github.com/user/scriptdesk/internal/delivery"
	"github.com/user/scriptdesk/internal/dispatch"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
)

// echoPlanner replies with the event text, or ignores events marked "ignore".
type echoPlanner struct {
	mu    sync.Mutex
	seen  []string
	delay time.Duration
	err   error
}

func (p *echoPlanner) Plan(_ context.Context, ev *types.InboundEvent) dispatch.Outcome {
	time.Sleep(p.delay)
	p.mu.Lock()
	p.seen = append(p.seen, ev.Text)
	p.mu.Unlock()
	if ev.Text == "ignore" {
		return dispatch.Outcome{Path: dispatch.PathIgnored}
	}
	return dispatch.Outcome{
		Path:       dispatch.PathEditorial,
		Intent:     command.Intent{Kind: command.KindTopic},
		Deliveries: []types.Delivery{types.TextDelivery(ev.ChannelID, "re: "+ev.Text)},
		Err:        p.err,
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []types.Delivery
}

func (s *recordingSender) Send(_ context.Context, ds []types.Delivery) delivery.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ds...)
	return delivery.Report{Sent: len(ds)}
}

func waitRuns(t *testing.T, n int) (RunOption, func() []*Run) {
	t.Helper()
	var mu sync.Mutex
	var runs []*Run
	done := make(chan struct{})
	opt := WithOnComplete(func(r *Run) {
		mu.Lock()
		defer mu.Unlock()
		runs = append(runs, r)
		if len(runs) == n {
			close(done)
		}
	})
	return opt, func() []*Run {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for runs")
		}
		mu.Lock()
		defer mu.Unlock()
		return runs
	}
}

func TestGatewaySubmitDeliversAndJournals(t *testing.T) {
	journal := state.NewJournal(t.TempDir())
	sender := &recordingSender{}
	gw := New(&echoPlanner{}, sender, WithJournal(journal))
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	opt, wait := waitRuns(t, 1)
	id, err := gw.Submit(ctx, &types.InboundEvent{ChannelID: "telegram:1", MessageID: "9", Source: "telegram", Text: "script: x"}, opt)
	if err != nil {
		t.Fatal(err)
	}
	runs := wait()

	if runs[0].ID != id || runs[0].Status != RunStatusComplete {
		t.Errorf("unexpected run %+v", runs[0])
	}
	if len(sender.sent) != 1 || sender.sent[0].Body != "re: script: x" {
		t.Errorf("unexpected deliveries %+v", sender.sent)
	}

	entries, err := journal.Tail(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(entries))
	}
	if entries[0].RunID != id || entries[0].Intent != "topic" || entries[0].Path != "editorial" || entries[0].Sent != 1 || entries[0].MessageID != "9" {
		t.Errorf("unexpected journal entry %+v", entries[0])
	}
}

func TestGatewayIgnoredEventsNotJournaled(t *testing.T) {
	journal := state.NewJournal(t.TempDir())
	sender := &recordingSender{}
	gw := New(&echoPlanner{}, sender, WithJournal(journal))
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	opt, wait := waitRuns(t, 1)
	if _, err := gw.Submit(ctx, &types.InboundEvent{ChannelID: "telegram:1", Text: "ignore"}, opt); err != nil {
		t.Fatal(err)
	}
	wait()

	if len(sender.sent) != 0 {
		t.Errorf("expected nothing sent, got %d", len(sender.sent))
	}
	entries, _ := journal.Tail(ctx, "", 10)
	if len(entries) != 0 {
		t.Errorf("expected no journal entries, got %d", len(entries))
	}
}

func TestGatewayFailedRun(t *testing.T) {
	journal := state.NewJournal(t.TempDir())
	gw := New(&echoPlanner{err: errors.New("generation failed")}, &recordingSender{}, WithJournal(journal))
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	opt, wait := waitRuns(t, 1)
	gw.Submit(ctx, &types.InboundEvent{ChannelID: "telegram:1", Text: "script: x"}, opt)
	runs := wait()

	if runs[0].Status != RunStatusFailed {
		t.Errorf("expected failed status, got %s", runs[0].Status)
	}
	entries, _ := journal.Tail(ctx, "", 10)
	if len(entries) != 1 || entries[0].Failure != "generation failed" {
		t.Errorf("expected failure in journal, got %+v", entries)
	}
}

func TestGatewaySameChannelInOrder(t *testing.T) {
	planner := &echoPlanner{delay: 10 * time.Millisecond}
	gw := New(planner, &recordingSender{}, WithMaxConcurrent(4))
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	opt, wait := waitRuns(t, 3)
	for _, text := range []string{"agenda", "3", "5"} {
		if _, err := gw.Submit(ctx, &types.InboundEvent{ChannelID: "whatsapp:a@g.us", Text: text}, opt); err != nil {
			t.Fatal(err)
		}
	}
	wait()

	planner.mu.Lock()
	defer planner.mu.Unlock()
	want := []string{"agenda", "3", "5"}
	for i, w := range want {
		if planner.seen[i] != w {
			t.Errorf("position %d: expected %q, got %q", i, w, planner.seen[i])
		}
	}
}

func TestGatewayHandleInboundRejectsMissingChannel(t *testing.T) {
	gw := New(&echoPlanner{}, &recordingSender{})
	gw.Start(context.Background())
	defer gw.Stop()

	if err := gw.HandleInbound(context.Background(), &types.InboundEvent{Text: "hi"}); err == nil {
		t.Error("expected error for event without channel")
	}
}

func TestGatewayImplementsInboundHandler(t *testing.T) {
	var _ types.InboundHandler = (*Gateway)(nil)
}

type runIDPlanner struct{ seen chan types.RunID }

func (p runIDPlanner) Plan(ctx context.Context, _ *types.InboundEvent) dispatch.Outcome {
	p.seen <- types.RunIDFrom(ctx)
	return dispatch.Outcome{Path: dispatch.PathIgnored}
}

func TestGatewayPlanSeesRunID(t *testing.T) {
	planner := runIDPlanner{seen: make(chan types.RunID, 1)}
	gw := New(planner, &recordingSender{})
	gw.Start(context.Background())
	defer gw.Stop()

	id, err := gw.Submit(context.Background(), &types.InboundEvent{ChannelID: "telegram:1", Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-planner.seen:
		if got != id {
			t.Errorf("planner saw run %q, want %q", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("planner never called")
	}
}
