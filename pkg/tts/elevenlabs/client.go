// Package elevenlabs implements tts.Provider against the ElevenLabs REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/scriptdesk/pkg/tts"
)

const (
	DefaultBaseURL      = "https://api.elevenlabs.io/v1"
	DefaultModel        = "eleven_multilingual_v2"
	DefaultOutputFormat = "mp3_44100_128"
)

// Config holds the client settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	OutputFormat string
}

// Client implements tts.Provider.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates an ElevenLabs client, filling unset fields with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type synthesisRequest struct {
	Text          string            `json:"text"`
	ModelID       string            `json:"model_id"`
	VoiceSettings tts.VoiceSettings `json:"voice_settings"`
}

// Synthesize posts text to /text-to-speech/{voice_id} and returns MP3 audio.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string, settings tts.VoiceSettings) ([]byte, string, error) {
	if voiceID == "" {
		return nil, "", fmt.Errorf("elevenlabs: voice id is required")
	}
	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       c.config.Model,
		VoiceSettings: settings,
	})
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", c.config.BaseURL, voiceID, c.config.OutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("elevenlabs: API returned %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: reading audio: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return audio, mime, nil
}
