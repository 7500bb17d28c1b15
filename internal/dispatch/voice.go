package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/scriptdesk/internal/chunk"
	"github.com/user/scriptdesk/internal/command"
	"github.com/user/scriptdesk/internal/prompts"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
	"github.com/user/scriptdesk/pkg/tts"
)

// ErrNoAudio means every synthesis call of a voice job failed.
var ErrNoAudio = errors.New("no audio synthesized")

// Voice is one named speech voice.
type Voice struct {
	Name string
	ID   string
}

// VoiceConfig maps speaker names to voice IDs.
type VoiceConfig struct {
	Default  Voice
	Voices   []Voice
	Settings tts.VoiceSettings
}

// Resolve finds a voice by name, case-insensitively. An empty name selects
// the default voice. ok is false when a name was given but not found, in
// which case the default is returned.
func (c VoiceConfig) Resolve(name string) (v Voice, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return c.Default, true
	}
	if strings.EqualFold(name, c.Default.Name) {
		return c.Default, true
	}
	for _, v := range c.Voices {
		if strings.EqualFold(name, v.Name) {
			return v, true
		}
	}
	return c.Default, false
}

func (d *Dispatcher) voice(ctx context.Context, ev *types.InboundEvent, intent command.Intent) Outcome {
	v, ok := d.cfg.Voice.Resolve(intent.VoiceName)
	if !ok {
		d.logger.Warn("unknown voice, using default", "requested", intent.VoiceName, "default", v.Name)
	}

	text := prompts.Plain(intent.Content)
	if text == "" {
		text = strings.TrimSpace(intent.Content)
	}

	// A single chunk over the ceiling is truncated by the gateway.
	var parts []string
	for _, c := range chunk.Split(text, chunk.SpeechOptions) {
		parts = append(parts, c.Content)
	}

	if len(parts) == 0 {
		return Outcome{Path: PathIgnored}
	}

	deliveries := []types.Delivery{
		types.TextDelivery(ev.ChannelID, voiceNotice(v.Name, len(parts), !ok, intent.VoiceName)),
	}

	var (
		audio   [][]byte
		lastErr error
	)
	for i, part := range parts {
		if i > 0 {
			if err := d.sleep(ctx, d.cfg.SynthesisPacing); err != nil {
				lastErr = err
				break
			}
		}
		b, err := d.gen.SynthesizeSpeech(ctx, part, v.ID, d.cfg.Voice.Settings)
		if err != nil {
			d.logger.Warn("chunk synthesis failed", "chunk", i+1, "of", len(parts), "error", err)
			lastErr = err
			continue
		}
		audio = append(audio, b)
	}

	if len(audio) == 0 {
		deliveries = append(deliveries, types.TextDelivery(ev.ChannelID, voiceFailed(len(parts))))
		return Outcome{Path: PathVoice, Deliveries: deliveries, Err: fmt.Errorf("%w: %w", ErrNoAudio, lastErr)}
	}
	if len(audio) < len(parts) {
		d.logger.Warn("voice note is missing chunks", "synthesized", len(audio), "of", len(parts))
	}

	joined := concatAudio(audio)
	fileName := d.archive(ctx, state.AudioMeta{
		ChannelID: ev.ChannelID,
		Voice:     v.Name,
		MimeType:  "audio/mpeg",
		Chunks:    len(audio),
	}, joined)

	deliveries = append(deliveries, types.AudioDelivery(ev.ChannelID, joined, true, fileName))
	return Outcome{Path: PathVoice, Deliveries: deliveries}
}

// concatAudio joins MP3 segments byte-wise. MP3 frames are self-delimiting,
// so players accept the result as one stream.
func concatAudio(parts [][]byte) []byte {
	if len(parts) == 1 {
		return parts[0]
	}
	return bytes.Join(parts, nil)
}
