package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/user/scriptdesk/internal/generate"
	"github.com/user/scriptdesk/internal/prompts"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/pkg/tts"
)

var errUpstream = errors.New("upstream unavailable")

// fakeGen answers text requests by prompt prefix and synthesizes speech
// as "<voice>:<text>" bytes.
type fakeGen struct {
	mu        sync.Mutex
	text      map[prompts.Name]string
	textErr   map[prompts.Name]error
	prompts   []string
	speech    []string
	voiceIDs  []string
	failSpeak map[int]bool // 1-based call numbers to fail
}

func newFakeGen() *fakeGen {
	return &fakeGen{
		text:      map[prompts.Name]string{},
		textErr:   map[prompts.Name]error{},
		failSpeak: map[int]bool{},
	}
}

func (g *fakeGen) GenerateText(_ context.Context, req generate.TextRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	name := prompts.Name(strings.SplitN(req.Prompt, "|", 2)[0])
	if err := g.textErr[name]; err != nil {
		return "", &generate.Failure{Kind: generate.GenerationFailure, Err: err}
	}
	return g.text[name], nil
}

func (g *fakeGen) SynthesizeSpeech(_ context.Context, text, voiceID string, _ tts.VoiceSettings) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speech = append(g.speech, text)
	g.voiceIDs = append(g.voiceIDs, voiceID)
	if g.failSpeak[len(g.speech)] {
		return nil, &generate.Failure{Kind: generate.SynthesisFailure, Err: errUpstream}
	}
	return []byte(fmt.Sprintf("[%s]", voiceID)), nil
}

// fakePrompts renders "<name>|<input>|<source>".
type fakePrompts struct{}

func (fakePrompts) Render(name prompts.Name, data prompts.Data) (string, error) {
	return string(name) + "|" + data.Input + "|" + data.Source, nil
}

type fakeFetcher struct {
	urls []string
	body string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.body, f.err
}

type fakeSink struct {
	metas []state.AudioMeta
	err   error
}

func (s *fakeSink) Put(_ context.Context, meta state.AudioMeta, audio []byte) (*state.AudioMeta, error) {
	if s.err != nil {
		return nil, s.err
	}
	meta.Bytes = len(audio)
	meta.FileName = fmt.Sprintf("clip-%d.mp3", len(s.metas)+1)
	s.metas = append(s.metas, meta)
	return &meta, nil
}

// recordSleep collects pacing delays without waiting.
type recordSleep struct {
	delays []time.Duration
}

func (r *recordSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}
