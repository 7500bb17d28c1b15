package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/user/scriptdesk/pkg/llm"
	"github.com/user/scriptdesk/pkg/tts"
)

type fakeText struct {
	calls int
	last  *llm.Request
	resp  *llm.Response
	err   error
}

func (f *fakeText) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeSpeech struct {
	calls    int
	lastText string
	audio    []byte
	err      error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voiceID string, settings tts.VoiceSettings) ([]byte, string, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return nil, "", f.err
	}
	return f.audio, "audio/mpeg", nil
}

func TestGenerateText(t *testing.T) {
	text := &fakeText{resp: &llm.Response{Content: "  a script  "}}
	g := New(text, nil, nil, nil)

	out, err := g.GenerateText(context.Background(), TextRequest{Prompt: "p", MaxOutputUnits: 3000, Temperature: 0.7})
	if err != nil {
		t.Fatal(err)
	}
	if out != "a script" {
		t.Errorf("expected trimmed output, got %q", out)
	}
	if text.last.MaxTokens != 3000 || text.last.TemperatureOr(0) != 0.7 {
		t.Errorf("limits not forwarded: %+v", text.last)
	}
	if text.last.Messages[0].Content != "p" {
		t.Errorf("prompt not forwarded verbatim")
	}
}

func TestGenerateTextDoesNotTruncatePrompt(t *testing.T) {
	text := &fakeText{resp: &llm.Response{Content: "ok"}}
	g := New(text, nil, nil, nil)
	long := strings.Repeat("x", 50000)
	if _, err := g.GenerateText(context.Background(), TextRequest{Prompt: long}); err != nil {
		t.Fatal(err)
	}
	if len(text.last.Messages[0].Content) != 50000 {
		t.Error("prompt must not be truncated")
	}
}

type fixedBudget struct {
	tokens int
	window int
}

func (b fixedBudget) FitsWindow(_ string, maxOutput int) (int, bool) {
	return b.tokens, b.tokens+maxOutput <= b.window
}

func TestGenerateTextContextWindow(t *testing.T) {
	tests := []struct {
		name      string
		maxOutput int
		wantCall  bool
	}{
		{"fits", 1000, true},
		{"exact fit", 2000, true},
		{"output pushes over", 2001, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := &fakeText{resp: &llm.Response{Content: "ok"}}
			g := New(text, nil, fixedBudget{tokens: 6000, window: 8000}, nil)

			_, err := g.GenerateText(context.Background(), TextRequest{Prompt: "article", MaxOutputUnits: tt.maxOutput})
			if tt.wantCall {
				if err != nil || text.calls != 1 {
					t.Fatalf("expected one call, got calls=%d err=%v", text.calls, err)
				}
				return
			}
			if !errors.Is(err, ErrContextWindow) || !IsFailure(err, GenerationFailure) {
				t.Errorf("expected context window generation failure, got %v", err)
			}
			if text.calls != 0 {
				t.Errorf("provider must not be called, got %d calls", text.calls)
			}
		})
	}
}

func TestGenerateTextFailureNoRetry(t *testing.T) {
	cause := errors.New("connection reset")
	text := &fakeText{err: cause}
	g := New(text, nil, nil, nil)

	_, err := g.GenerateText(context.Background(), TextRequest{Prompt: "p"})
	if !IsFailure(err, GenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("failure should wrap the cause")
	}
	if text.calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", text.calls)
	}
}

func TestGenerateTextEmptyIsFailure(t *testing.T) {
	g := New(&fakeText{resp: &llm.Response{Content: "   "}}, nil, nil, nil)
	if _, err := g.GenerateText(context.Background(), TextRequest{Prompt: "p"}); !IsFailure(err, GenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestGenerateTextNoProvider(t *testing.T) {
	g := New(nil, nil, nil, nil)
	if _, err := g.GenerateText(context.Background(), TextRequest{Prompt: "p"}); !IsFailure(err, GenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestSynthesizeSpeech(t *testing.T) {
	speech := &fakeSpeech{audio: []byte("mp3")}
	g := New(nil, speech, nil, nil)

	audio, err := g.SynthesizeSpeech(context.Background(), "hello", "v1", tts.VoiceSettings{})
	if err != nil {
		t.Fatal(err)
	}
	if string(audio) != "mp3" {
		t.Errorf("unexpected audio %q", audio)
	}
}

func TestSynthesizeSpeechTruncates(t *testing.T) {
	speech := &fakeSpeech{audio: []byte("mp3")}
	g := New(nil, speech, nil, nil)

	input := strings.Repeat("سیلاب", 1200) // 6000 runes
	if _, err := g.SynthesizeSpeech(context.Background(), input, "v1", tts.VoiceSettings{}); err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(speech.lastText); n != SpeechInputCeiling {
		t.Errorf("expected %d runes sent, got %d", SpeechInputCeiling, n)
	}
	if !utf8.ValidString(speech.lastText) {
		t.Error("truncation produced invalid UTF-8")
	}
}

func TestSynthesizeSpeechFailure(t *testing.T) {
	speech := &fakeSpeech{err: errors.New("429")}
	g := New(nil, speech, nil, nil)

	_, err := g.SynthesizeSpeech(context.Background(), "x", "v", tts.VoiceSettings{})
	if !IsFailure(err, SynthesisFailure) {
		t.Fatalf("expected synthesis failure, got %v", err)
	}
	if IsFailure(err, GenerationFailure) {
		t.Error("synthesis failure must not report as generation failure")
	}
	if speech.calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", speech.calls)
	}
}

func TestSynthesizeSpeechEmptyAudio(t *testing.T) {
	g := New(nil, &fakeSpeech{}, nil, nil)
	if _, err := g.SynthesizeSpeech(context.Background(), "x", "v", tts.VoiceSettings{}); !IsFailure(err, SynthesisFailure) {
		t.Fatalf("expected synthesis failure, got %v", err)
	}
}
