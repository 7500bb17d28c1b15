// Package tts defines the speech synthesis backend contract.
package tts

import "context"

// VoiceSettings are the per-call synthesis parameters chosen by the caller.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// Provider is the interface for TTS backends. One call per Synthesize;
// retrying is the caller's decision.
type Provider interface {
	// Synthesize converts text to audio and returns the audio bytes and
	// their MIME type.
	Synthesize(ctx context.Context, text, voiceID string, settings VoiceSettings) ([]byte, string, error)
}
