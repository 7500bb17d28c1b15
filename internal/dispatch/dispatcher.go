// Package dispatch turns a classified inbound message into an ordered list
// of deliveries, calling the generation services on the way.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/user/scriptdesk/internal/command"
	"github.com/user/scriptdesk/internal/delivery"
	"github.com/user/scriptdesk/internal/generate"
	"github.com/user/scriptdesk/internal/headline"
	"github.com/user/scriptdesk/internal/prompts"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
	"github.com/user/scriptdesk/pkg/tts"
)

// ErrExtraction means the generated editorial text held no script body.
var ErrExtraction = errors.New("no script body in generated text")

// Path names the pipeline that handled an event.
type Path string

const (
	PathIgnored        Path = "ignored"
	PathEditorial      Path = "editorial"
	PathScript         Path = "script"
	PathVisuals        Path = "visuals"
	PathVoice          Path = "voice"
	PathAgenda         Path = "agenda"
	PathHeadlineSelect Path = "headline_select"
	PathAudioIntake    Path = "audio_intake"
)

// Outcome is the result of planning one inbound event. Err records the
// failure that ended the pipeline, if any; Deliveries may still hold a
// user-facing failure message.
type Outcome struct {
	Path       Path
	Intent     command.Intent
	Deliveries []types.Delivery
	Err        error
}

// Channels are the destination roles, resolved to concrete IDs at startup.
type Channels struct {
	Intake             types.ChannelID
	ScriptDistribution types.ChannelID
	VisualDistribution types.ChannelID
}

// Limits bound one text generation call.
type Limits struct {
	MaxOutputUnits int
	Temperature    float32
}

// Generation holds per-path limits.
type Generation struct {
	Editorial Limits
	Script    Limits
	Visuals   Limits
	Agenda    Limits
}

// DefaultGeneration returns the limits used when none are configured.
func DefaultGeneration() Generation {
	return Generation{
		Editorial: Limits{MaxOutputUnits: 4000, Temperature: 0.7},
		Script:    Limits{MaxOutputUnits: 3000, Temperature: 0.7},
		Visuals:   Limits{MaxOutputUnits: 2000, Temperature: 0.4},
		Agenda:    Limits{MaxOutputUnits: 1500, Temperature: 0.3},
	}
}

// Config controls the dispatcher.
type Config struct {
	Channels   Channels
	Voice      VoiceConfig
	Generation Generation
	// SynthesisPacing is the delay between successive synthesis calls of
	// one multi-chunk job.
	SynthesisPacing time.Duration
	// IncludeVisuals adds a visuals brief for the visual-distribution
	// channel to the editorial path.
	IncludeVisuals bool
}

// Generator is the generation gateway as seen by the dispatcher.
type Generator interface {
	GenerateText(ctx context.Context, req generate.TextRequest) (string, error)
	SynthesizeSpeech(ctx context.Context, text, voiceID string, settings tts.VoiceSettings) ([]byte, error)
}

// PromptRenderer renders the named prompt templates.
type PromptRenderer interface {
	Render(name prompts.Name, data prompts.Data) (string, error)
}

// SourceFetcher retrieves a linked article as markdown.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// AudioSink archives synthesized or relayed audio.
type AudioSink interface {
	Put(ctx context.Context, meta state.AudioMeta, audio []byte) (*state.AudioMeta, error)
}

// Dispatcher routes inbound events through the generation pipelines.
type Dispatcher struct {
	cfg       Config
	gen       Generator
	prompts   PromptRenderer
	headlines *headline.Store
	sources   SourceFetcher
	audio     AudioSink
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// Option configures optional Dispatcher collaborators.
type Option func(*Dispatcher)

// WithSourceFetcher enables fetching of URLs found in editorial input.
func WithSourceFetcher(f SourceFetcher) Option {
	return func(d *Dispatcher) { d.sources = f }
}

// WithAudioSink archives every audio payload before it is delivered.
func WithAudioSink(s AudioSink) Option {
	return func(d *Dispatcher) { d.audio = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithSleep replaces the pacing sleep, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = fn }
}

// New creates a Dispatcher.
func New(cfg Config, gen Generator, p PromptRenderer, headlines *headline.Store, opts ...Option) *Dispatcher {
	if cfg.Generation == (Generation{}) {
		cfg.Generation = DefaultGeneration()
	}
	d := &Dispatcher{
		cfg:       cfg,
		gen:       gen,
		prompts:   p,
		headlines: headlines,
		sleep:     delivery.Sleep,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatch")
	return d
}

// Plan classifies the event and runs the matching pipeline. It never
// returns an error: failures end up in Outcome.Err and, on interactive
// paths, as a failure message in Outcome.Deliveries.
func (d *Dispatcher) Plan(ctx context.Context, ev *types.InboundEvent) Outcome {
	if ev == nil || ev.SenderIsSelf || !ev.HasContent() {
		return Outcome{Path: PathIgnored}
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return d.audioIntake(ctx, ev)
	}

	intent := command.Classify(text)
	logger := d.logger.With("channel", string(ev.ChannelID), "intent", string(intent.Kind))
	logger.Debug("message classified")

	var out Outcome
	switch intent.Kind {
	case command.KindTopic:
		out = d.editorial(ctx, ev, intent.Content)
	case command.KindNoMatch:
		if d.cfg.Channels.Intake == "" || ev.ChannelID != d.cfg.Channels.Intake {
			return Outcome{Path: PathIgnored, Intent: intent}
		}
		out = d.editorial(ctx, ev, text)
	case command.KindScript:
		out = d.script(ctx, ev, intent.Content)
	case command.KindVisuals:
		out = d.visuals(ctx, ev, intent.Content)
	case command.KindVoice, command.KindVoicePerson:
		out = d.voice(ctx, ev, intent)
	case command.KindAgenda:
		out = d.agenda(ctx, ev)
	case command.KindHeadlineSelect:
		out = d.headlineSelect(ctx, ev, intent.Index)
	default:
		return Outcome{Path: PathIgnored, Intent: intent}
	}
	out.Intent = intent

	if out.Err != nil {
		logger.Warn("pipeline failed", "path", string(out.Path), "error", out.Err)
	} else {
		logger.Info("pipeline complete", "path", string(out.Path), "deliveries", len(out.Deliveries))
	}
	return out
}

func (d *Dispatcher) generate(ctx context.Context, name prompts.Name, data prompts.Data, limits Limits) (string, error) {
	prompt, err := d.prompts.Render(name, data)
	if err != nil {
		return "", err
	}
	return d.gen.GenerateText(ctx, generate.TextRequest{
		Prompt:         prompt,
		MaxOutputUnits: limits.MaxOutputUnits,
		Temperature:    limits.Temperature,
	})
}

func (d *Dispatcher) script(ctx context.Context, ev *types.InboundEvent, content string) Outcome {
	text, err := d.generate(ctx, prompts.Script, prompts.Data{Input: content}, d.cfg.Generation.Script)
	if err != nil {
		return failed(PathScript, ev.ChannelID, msgScriptFailed, err)
	}
	return Outcome{Path: PathScript, Deliveries: []types.Delivery{
		types.TextDelivery(ev.ChannelID, labelScript+text),
	}}
}

func (d *Dispatcher) visuals(ctx context.Context, ev *types.InboundEvent, content string) Outcome {
	text, err := d.generate(ctx, prompts.Visuals, prompts.Data{Input: content}, d.cfg.Generation.Visuals)
	if err != nil {
		return failed(PathVisuals, ev.ChannelID, msgVisualsFailed, err)
	}
	return Outcome{Path: PathVisuals, Deliveries: []types.Delivery{
		types.TextDelivery(ev.ChannelID, labelVisuals+text),
	}}
}

func (d *Dispatcher) agenda(ctx context.Context, ev *types.InboundEvent) Outcome {
	text, err := d.generate(ctx, prompts.Agenda, prompts.Data{}, d.cfg.Generation.Agenda)
	if err != nil {
		return failed(PathAgenda, ev.ChannelID, msgAgendaFailed, err)
	}
	headlines := headline.Parse(text)
	if len(headlines) != command.MaxHeadlines {
		d.logger.Warn("agenda has unexpected headline count", "channel", string(ev.ChannelID), "count", len(headlines))
	}
	d.headlines.Put(ev.ChannelID, headlines)
	return Outcome{Path: PathAgenda, Deliveries: []types.Delivery{
		types.TextDelivery(ev.ChannelID, text),
	}}
}

func (d *Dispatcher) headlineSelect(ctx context.Context, ev *types.InboundEvent, index int) Outcome {
	sess, err := d.headlines.Get(ev.ChannelID)
	switch {
	case errors.Is(err, headline.ErrSessionExpired):
		return failed(PathHeadlineSelect, ev.ChannelID, msgSessionExpired, err)
	case err != nil:
		return failed(PathHeadlineSelect, ev.ChannelID, msgSessionMissing, err)
	}

	line, err := sess.Select(index)
	if err != nil {
		return failed(PathHeadlineSelect, ev.ChannelID, selectionOutOfRange(len(sess.Headlines)), err)
	}

	text, err := d.generate(ctx, prompts.Script, prompts.Data{Input: headline.StripNumber(line)}, d.cfg.Generation.Script)
	if err != nil {
		return failed(PathHeadlineSelect, ev.ChannelID, msgScriptFailed, err)
	}
	return Outcome{Path: PathHeadlineSelect, Deliveries: []types.Delivery{
		types.TextDelivery(ev.ChannelID, text),
	}}
}

// failed builds an interactive-path outcome carrying one failure message.
func failed(path Path, channel types.ChannelID, message string, err error) Outcome {
	return Outcome{
		Path:       path,
		Deliveries: []types.Delivery{types.TextDelivery(channel, message)},
		Err:        err,
	}
}
