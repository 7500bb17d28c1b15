// Package generate is the boundary between the dispatcher and the
// external text and speech services.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/user/scriptdesk/pkg/llm"
	"github.com/user/scriptdesk/pkg/tts"
)

// SpeechInputCeiling is the largest text, in characters, sent in one
// synthesis call. Longer input is truncated.
const SpeechInputCeiling = 5000

type FailureKind string

const (
	GenerationFailure FailureKind = "generation"
	SynthesisFailure  FailureKind = "synthesis"
)

var (
	errEmptyText  = errors.New("empty text in response")
	errEmptyAudio = errors.New("empty audio in response")
	errNoProvider = errors.New("provider not configured")

	// ErrContextWindow means the prompt plus the requested output exceeds
	// the model's context window. The prompt is not sent.
	ErrContextWindow = errors.New("prompt exceeds context window")
)

// Failure is returned by every Gateway call that does not produce a result.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsFailure reports whether err is a Failure of the given kind.
func IsFailure(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

// TextRequest is one text generation call.
type TextRequest struct {
	Prompt         string
	MaxOutputUnits int
	Temperature    float32
}

// PromptBudget measures prompts against the model's context window.
type PromptBudget interface {
	FitsWindow(prompt string, maxOutput int) (tokens int, ok bool)
}

// Gateway wraps the text and speech providers behind a uniform contract.
// It never retries.
type Gateway struct {
	text   llm.Provider
	speech tts.Provider
	budget PromptBudget
	logger *slog.Logger
}

// New creates a Gateway. Either provider may be nil, in which case calls
// needing it fail.
func New(text llm.Provider, speech tts.Provider, budget PromptBudget, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		text:   text,
		speech: speech,
		budget: budget,
		logger: logger.With("component", "generate"),
	}
}

// GenerateText submits a prompt and returns the generated text. The prompt
// is sent as is; output length is bounded by MaxOutputUnits on the
// provider side. A prompt that cannot fit the context window together with
// MaxOutputUnits fails with ErrContextWindow before any call is made.
func (g *Gateway) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if g.text == nil {
		return "", &Failure{Kind: GenerationFailure, Err: errNoProvider}
	}

	attrs := []any{"max_output", req.MaxOutputUnits, "temperature", req.Temperature}
	if g.budget != nil {
		tokens, ok := g.budget.FitsWindow(req.Prompt, req.MaxOutputUnits)
		attrs = append(attrs, "prompt_tokens", tokens)
		if !ok {
			g.logger.Warn("prompt too large for context window", attrs...)
			return "", &Failure{Kind: GenerationFailure, Err: ErrContextWindow}
		}
	}
	start := time.Now()

	resp, err := g.text.Complete(ctx, llm.Prompt(req.Prompt, req.MaxOutputUnits, req.Temperature))
	if err != nil {
		g.logger.Warn("text generation failed", append(attrs, "error", err)...)
		return "", &Failure{Kind: GenerationFailure, Err: err}
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		g.logger.Warn("text generation returned nothing", append(attrs, "finish_reason", resp.FinishReason)...)
		return "", &Failure{Kind: GenerationFailure, Err: errEmptyText}
	}

	g.logger.Debug("text generated", append(attrs,
		"duration", time.Since(start),
		"output_tokens", resp.Usage.OutputTokens,
		"chars", utf8.RuneCountInString(text),
	)...)
	return text, nil
}

// SynthesizeSpeech converts text to audio with the given voice. Text
// longer than SpeechInputCeiling is truncated first.
func (g *Gateway) SynthesizeSpeech(ctx context.Context, text, voiceID string, settings tts.VoiceSettings) ([]byte, error) {
	if g.speech == nil {
		return nil, &Failure{Kind: SynthesisFailure, Err: errNoProvider}
	}
	if n := utf8.RuneCountInString(text); n > SpeechInputCeiling {
		g.logger.Warn("speech input truncated", "chars", n, "ceiling", SpeechInputCeiling)
		text = truncateRunes(text, SpeechInputCeiling)
	}

	start := time.Now()
	audio, _, err := g.speech.Synthesize(ctx, text, voiceID, settings)
	if err != nil {
		g.logger.Warn("speech synthesis failed", "voice", voiceID, "error", err)
		return nil, &Failure{Kind: SynthesisFailure, Err: err}
	}
	if len(audio) == 0 {
		return nil, &Failure{Kind: SynthesisFailure, Err: errEmptyAudio}
	}
	g.logger.Debug("speech synthesized",
		"voice", voiceID,
		"chars", utf8.RuneCountInString(text),
		"bytes", len(audio),
		"duration", time.Since(start),
	)
	return audio, nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
