package dispatch

import (
	"context"
	"strings"

	"github.com/user/scriptdesk/internal/chunk"
	"github.com/user/scriptdesk/internal/prompts"
	"github.com/user/scriptdesk/internal/source"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
)

// headingSummaryRunes bounds the input summary shown in the script heading.
const headingSummaryRunes = 100

// editorial runs the full editorial pipeline: one generation call, script
// extraction, chunking for distribution and an acknowledgement reaction.
// Failures are logged only; nothing is sent back.
func (d *Dispatcher) editorial(ctx context.Context, ev *types.InboundEvent, input string) Outcome {
	data := prompts.Data{Input: input}
	if d.sources != nil {
		if url := source.FirstURL(input); url != "" {
			md, err := d.sources.Fetch(ctx, url)
			if err != nil {
				d.logger.Warn("source fetch failed", "url", url, "error", err)
			} else {
				data.Source = md
			}
		}
	}

	text, err := d.generate(ctx, prompts.Editorial, data, d.cfg.Generation.Editorial)
	if err != nil {
		return Outcome{Path: PathEditorial, Err: err}
	}

	script := ExtractScript(text)
	if script == "" {
		return Outcome{Path: PathEditorial, Err: ErrExtraction}
	}

	dest := d.cfg.Channels.ScriptDistribution
	if dest == "" {
		dest = ev.ChannelID
	}

	chunks := chunk.Split(script, chunk.DistributionOptions)
	deliveries := make([]types.Delivery, 0, len(chunks)+3)
	deliveries = append(deliveries, types.TextDelivery(dest, scriptHeading(summarize(input, headingSummaryRunes))))
	for _, c := range chunks {
		deliveries = append(deliveries, types.TextDelivery(dest, c.Content))
	}

	if d.cfg.IncludeVisuals && d.cfg.Channels.VisualDistribution != "" {
		brief, err := d.generate(ctx, prompts.Visuals, prompts.Data{Input: script}, d.cfg.Generation.Visuals)
		if err != nil {
			d.logger.Warn("visuals brief failed", "error", err)
		} else {
			deliveries = append(deliveries, types.TextDelivery(d.cfg.Channels.VisualDistribution, labelVisuals+brief))
		}
	}

	if ev.MessageID != "" {
		deliveries = append(deliveries, types.ReactionDelivery(ev.ChannelID, ev.MessageID, reactionDone))
	}
	return Outcome{Path: PathEditorial, Deliveries: deliveries}
}

// audioIntake relays an audio note posted on the intake channel to the
// script-distribution channel as a voice note. Audio elsewhere is ignored.
func (d *Dispatcher) audioIntake(ctx context.Context, ev *types.InboundEvent) Outcome {
	ch := d.cfg.Channels
	if ch.Intake == "" || ev.ChannelID != ch.Intake || ch.ScriptDistribution == "" {
		return Outcome{Path: PathIgnored}
	}

	fileName := d.archive(ctx, state.AudioMeta{
		ChannelID: ev.ChannelID,
		MimeType:  ev.AudioMimeType,
		Chunks:    1,
	}, ev.Audio)

	deliveries := []types.Delivery{types.AudioDelivery(ch.ScriptDistribution, ev.Audio, true, fileName)}
	if ev.MessageID != "" {
		deliveries = append(deliveries, types.ReactionDelivery(ev.ChannelID, ev.MessageID, reactionDone))
	}
	d.logger.Info("audio relayed", "from", string(ev.ChannelID), "to", string(ch.ScriptDistribution), "bytes", len(ev.Audio))
	return Outcome{Path: PathAudioIntake, Deliveries: deliveries}
}

// archive stores audio when a sink is configured and returns the file name
// to deliver it under.
func (d *Dispatcher) archive(ctx context.Context, meta state.AudioMeta, audio []byte) string {
	fallback := "voice.mp3"
	if meta.MimeType == "audio/ogg" {
		fallback = "voice.ogg"
	}
	if d.audio == nil {
		return fallback
	}
	meta.RunID = types.RunIDFrom(ctx)
	stored, err := d.audio.Put(ctx, meta, audio)
	if err != nil {
		d.logger.Warn("audio archive failed", "error", err)
		return fallback
	}
	return stored.FileName
}

// ExtractScript returns the script body between the script markers. A
// missing start marker means the body starts at the beginning; a missing
// end marker means it runs to the end.
func ExtractScript(text string) string {
	body := text
	if i := strings.Index(body, prompts.ScriptStartMarker); i >= 0 {
		body = body[i+len(prompts.ScriptStartMarker):]
	}
	if i := strings.Index(body, prompts.ScriptEndMarker); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(body)
}

// summarize returns the first line of s, cut to n runes.
func summarize(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
