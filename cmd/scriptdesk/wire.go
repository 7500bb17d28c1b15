package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/user/scriptdesk/internal/config"
	"github.com/user/scriptdesk/internal/delivery"
	"github.com/user/scriptdesk/internal/dispatch"
	"github.com/user/scriptdesk/internal/generate"
	"github.com/user/scriptdesk/internal/headline"
	"github.com/user/scriptdesk/internal/prompts"
	"github.com/user/scriptdesk/internal/source"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
	"github.com/user/scriptdesk/pkg/llm"
	"github.com/user/scriptdesk/pkg/llm/gemini"
	"github.com/user/scriptdesk/pkg/llm/openai"
	"github.com/user/scriptdesk/pkg/tts"
	"github.com/user/scriptdesk/pkg/tts/elevenlabs"
)

// pipeline is everything between an inbound event and its deliveries.
type pipeline struct {
	prompts    *prompts.Library
	headlines  *headline.Store
	journal    *state.Journal
	jobs       *state.JobStore
	audio      *state.AudioArchive
	dispatcher *dispatch.Dispatcher
	registry   *delivery.Registry
	fanout     *delivery.FanOut
}

func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lib, err := prompts.New(prompts.Options{
		Model:         cfg.LLM.Model,
		ContextWindow: cfg.LLM.MaxContextTokens,
		Dir:           cfg.PromptsDir,
		Language:      cfg.Language,
		Region:        cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	text, err := newTextProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gen := generate.New(text, newSpeechProvider(cfg), lib, logger)

	p := &pipeline{
		prompts:   lib,
		headlines: headline.NewStore(),
		journal:   state.NewJournal(cfg.DataDir),
		jobs:      state.NewJobStore(filepath.Join(cfg.DataDir, "jobs.json")),
		audio:     state.NewAudioArchive(cfg.DataDir),
		registry:  delivery.NewRegistry(),
	}

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithAudioSink(p.audio),
	}
	if cfg.Editorial.FetchSources {
		opts = append(opts, dispatch.WithSourceFetcher(source.NewFetcher(30*time.Second, cfg.Editorial.SourceMaxChars)))
	}
	p.dispatcher = dispatch.New(dispatchConfig(cfg), gen, lib, p.headlines, opts...)

	retry := delivery.DefaultRetryPolicy()
	if cfg.Delivery.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.Delivery.RetryAttempts
	}
	p.fanout = delivery.NewFanOut(p.registry,
		delivery.WithTextPacing(time.Duration(cfg.Delivery.TextPacingMS)*time.Millisecond),
		delivery.WithRetryPolicy(retry),
		delivery.WithLogger(logger),
	)
	return p, nil
}

func newTextProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	llmCfg := &llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	switch cfg.LLM.Provider {
	case "gemini":
		// The OpenAI default base URL is meaningless to the genai SDK.
		if llmCfg.BaseURL == config.Default().LLM.BaseURL {
			llmCfg.BaseURL = ""
		}
		c, err := gemini.New(ctx, llmCfg)
		if err != nil {
			return nil, fmt.Errorf("create gemini provider: %w", err)
		}
		return c, nil
	case "openai", "":
		return openai.New(llmCfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

// newSpeechProvider returns nil when no speech key is configured; voice
// requests then fail with a synthesis failure.
func newSpeechProvider(cfg *config.Config) tts.Provider {
	if cfg.Speech.APIKey == "" {
		return nil
	}
	return elevenlabs.New(elevenlabs.Config{
		APIKey:       cfg.Speech.APIKey,
		BaseURL:      cfg.Speech.BaseURL,
		Model:        cfg.Speech.Model,
		OutputFormat: cfg.Speech.OutputFormat,
	})
}

func dispatchConfig(cfg *config.Config) dispatch.Config {
	voices := make([]dispatch.Voice, 0, len(cfg.Speech.Voices))
	for _, v := range cfg.Speech.Voices {
		voices = append(voices, dispatch.Voice{Name: v.Name, ID: v.ID})
	}
	limits := func(l config.Limits) dispatch.Limits {
		return dispatch.Limits{MaxOutputUnits: l.MaxTokens, Temperature: l.Temperature}
	}
	return dispatch.Config{
		Channels: dispatch.Channels{
			Intake:             types.ChannelID(cfg.Channels.Intake),
			ScriptDistribution: types.ChannelID(cfg.Channels.ScriptDistribution),
			VisualDistribution: types.ChannelID(cfg.Channels.VisualDistribution),
		},
		Voice: dispatch.VoiceConfig{
			Default: dispatch.Voice{Name: cfg.Speech.DefaultVoice.Name, ID: cfg.Speech.DefaultVoice.ID},
			Voices:  voices,
			Settings: tts.VoiceSettings{
				Stability:       cfg.Speech.Stability,
				SimilarityBoost: cfg.Speech.SimilarityBoost,
				Style:           cfg.Speech.Style,
				SpeakerBoost:    cfg.Speech.SpeakerBoost,
			},
		},
		Generation: dispatch.Generation{
			Editorial: limits(cfg.Generation.Editorial),
			Script:    limits(cfg.Generation.Script),
			Visuals:   limits(cfg.Generation.Visuals),
			Agenda:    limits(cfg.Generation.Agenda),
		},
		SynthesisPacing: time.Duration(cfg.Speech.PacingMS) * time.Millisecond,
		IncludeVisuals:  cfg.Editorial.IncludeVisuals,
	}
}

// roleChannels lists the configured channel roles.
func roleChannels(cfg *config.Config) []types.ChannelID {
	var out []types.ChannelID
	for _, ch := range []string{cfg.Channels.Intake, cfg.Channels.ScriptDistribution, cfg.Channels.VisualDistribution} {
		if ch != "" {
			out = append(out, types.ChannelID(ch))
		}
	}
	return out
}
