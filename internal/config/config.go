package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Voice names one speech voice.
type Voice struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Limits bound one kind of text generation.
type Limits struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	PromptsDir    string `json:"prompts_dir"`
	Language      string `json:"language"`
	Region        string `json:"region"`
	LLM           struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
	} `json:"llm"`
	Generation struct {
		Editorial Limits `json:"editorial"`
		Script    Limits `json:"script"`
		Visuals   Limits `json:"visuals"`
		Agenda    Limits `json:"agenda"`
	} `json:"generation"`
	Speech struct {
		APIKey          string  `json:"api_key"`
		BaseURL         string  `json:"base_url"`
		Model           string  `json:"model"`
		OutputFormat    string  `json:"output_format"`
		DefaultVoice    Voice   `json:"default_voice"`
		Voices          []Voice `json:"voices"`
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Style           float64 `json:"style"`
		SpeakerBoost    bool    `json:"speaker_boost"`
		PacingMS        int     `json:"pacing_ms"`
	} `json:"speech"`
	Channels struct {
		Intake             string `json:"intake"`
		ScriptDistribution string `json:"script_distribution"`
		VisualDistribution string `json:"visual_distribution"`
	} `json:"channels"`
	Editorial struct {
		IncludeVisuals bool `json:"include_visuals"`
		FetchSources   bool `json:"fetch_sources"`
		SourceMaxChars int  `json:"source_max_chars"`
	} `json:"editorial"`
	Delivery struct {
		TextPacingMS  int `json:"text_pacing_ms"`
		RetryAttempts int `json:"retry_attempts"`
	} `json:"delivery"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	WhatsApp struct {
		Enabled bool `json:"enabled"`
	} `json:"whatsapp"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".scriptdesk"),
		LogLevel:      "info",
		MaxConcurrent: 2,
		Language:      "Urdu",
		Region:        "Pakistan",
	}
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 4000
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxContextTokens = 128000

	cfg.Generation.Editorial = Limits{MaxTokens: 4000, Temperature: 0.7}
	cfg.Generation.Script = Limits{MaxTokens: 3000, Temperature: 0.7}
	cfg.Generation.Visuals = Limits{MaxTokens: 2000, Temperature: 0.4}
	cfg.Generation.Agenda = Limits{MaxTokens: 1500, Temperature: 0.3}

	cfg.Speech.BaseURL = "https://api.elevenlabs.io/v1"
	cfg.Speech.Model = "eleven_multilingual_v2"
	cfg.Speech.OutputFormat = "mp3_44100_128"
	cfg.Speech.Stability = 0.5
	cfg.Speech.SimilarityBoost = 0.75
	cfg.Speech.Style = 0
	cfg.Speech.SpeakerBoost = true
	cfg.Speech.PacingMS = 1000

	cfg.Editorial.FetchSources = true
	cfg.Editorial.SourceMaxChars = 20000

	cfg.Delivery.TextPacingMS = 1000
	cfg.Delivery.RetryAttempts = 3

	cfg.HTTP.Listen = "127.0.0.1:8484"
	return cfg
}

// Load reads the config file at path over the defaults, writing the
// defaults there first if the file does not exist. Environment variables
// override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides config values from the environment (highest precedence).
func applyEnv(cfg *Config) {
	if cfg.LLM.Provider == "gemini" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
	} else {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		cfg.Speech.APIKey = key
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if intake := os.Getenv("SCRIPTDESK_INTAKE_CHANNEL"); intake != "" {
		cfg.Channels.Intake = intake
	}
}

// Validate reports configuration that would prevent serving.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown llm.provider: %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1")
	}
	if c.Speech.APIKey != "" && c.Speech.DefaultVoice.ID == "" {
		return fmt.Errorf("speech.default_voice.id is required when speech is enabled")
	}
	return nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to its generic JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns cfg as dot-separated keys, optionally masking secrets.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// readRaw loads the config file as a generic map, without defaults.
func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return m, nil
}

// GetValue returns the value stored under a dot-separated key. A missing
// file is created with defaults first.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores value under a dot-separated key in an existing config
// file. The key must be a known setting; value is converted to that
// setting's type.
func SetValue(path, key, value string) error {
	typed, err := coerce(key, value)
	if err != nil {
		return err
	}
	m, err := readRaw(path)
	if err != nil {
		return err
	}
	flat := Flatten(m)
	flat[key] = typed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := json.Unmarshal(data, Default()); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return writeAtomic(path, append(data, '\n'))
}
