package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)
	for _, env := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "ELEVENLABS_API_KEY", "TELEGRAM_BOT_TOKEN", "SCRIPTDESK_INTAKE_CHANNEL"} {
		t.Setenv(env, "")
	}

	original := Default()
	original.DataDir = "/tmp/test-data"
	original.LogLevel = "debug"
	original.MaxConcurrent = 4
	original.LLM.APIKey = "sk-test-round-trip"
	original.LLM.Temperature = 0.5
	original.Speech.APIKey = "xi-key-123"
	original.Speech.DefaultVoice = Voice{Name: "Narrator", ID: "v-1"}
	original.Speech.Voices = []Voice{{Name: "Ali", ID: "v-2"}}
	original.Channels.Intake = "whatsapp:intake@g.us"
	original.Editorial.IncludeVisuals = true
	original.Telegram.Token = "bot-token-456"

	writeTestConfig(t, path, original)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	a, _ := json.Marshal(original)
	b, _ := json.Marshal(loaded)
	if string(a) != string(b) {
		t.Errorf("round trip mismatch:\n%s\n%s", a, b)
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.json")

	if err := Save(path, &Config{LogLevel: "info"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should not exist after successful save")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file should exist: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestToMap(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/test"}
	cfg.LLM.Model = "gpt-4"
	cfg.LLM.MaxTokens = 2000

	m, err := ToMap(cfg)
	if err != nil {
		t.Fatalf("ToMap failed: %v", err)
	}
	if m["data_dir"] != "/tmp/test" {
		t.Errorf("expected data_dir=/tmp/test, got %v", m["data_dir"])
	}
	llm, ok := m["llm"].(map[string]any)
	if !ok {
		t.Fatalf("expected llm to be map, got %T", m["llm"])
	}
	// JSON numbers are float64
	if llm["model"] != "gpt-4" || llm["max_tokens"] != float64(2000) {
		t.Errorf("unexpected llm section %v", llm)
	}
}

func TestListValues(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	cfg.LLM.APIKey = "sk-secret-key-1234"
	cfg.Speech.APIKey = "xi-key-5678"
	cfg.Telegram.Token = "bot-token-abcd"

	tests := []struct {
		mask bool
		want map[string]string
	}{
		{false, map[string]string{
			"llm.api_key":    "sk-secret-key-1234",
			"speech.api_key": "xi-key-5678",
			"telegram.token": "bot-token-abcd",
			"log_level":      "info",
		}},
		{true, map[string]string{
			"llm.api_key":    "***1234",
			"speech.api_key": "***5678",
			"telegram.token": "***abcd",
			"log_level":      "info",
		}},
	}
	for _, tt := range tests {
		flat, err := ListValues(cfg, tt.mask)
		if err != nil {
			t.Fatalf("ListValues failed: %v", err)
		}
		for k, want := range tt.want {
			if flat[k] != want {
				t.Errorf("mask=%v: expected %s=%q, got %v", tt.mask, k, want, flat[k])
			}
		}
	}
}

func TestGetValue(t *testing.T) {
	path := tempConfigPath(t)
	cfg := Default()
	cfg.MaxConcurrent = 8
	cfg.Channels.ScriptDistribution = "telegram:-100"
	writeTestConfig(t, path, cfg)

	tests := []struct {
		key  string
		want any
	}{
		{"log_level", "info"},
		{"llm.model", "gpt-4o-mini"},
		{"max_concurrent", float64(8)},
		{"channels.script_distribution", "telegram:-100"},
		{"speech.default_voice.id", ""},
	}
	for _, tt := range tests {
		v, err := GetValue(path, tt.key)
		if err != nil {
			t.Fatalf("%s: %v", tt.key, err)
		}
		if v != tt.want {
			t.Errorf("%s: expected %v, got %v (%T)", tt.key, tt.want, v, v)
		}
	}

	_, err := GetValue(path, "nonexistent.key")
	if err == nil || err.Error() != "unknown config key: nonexistent.key" {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestGetValue_NonexistentFileUsesDefaults(t *testing.T) {
	v, err := GetValue(tempConfigPath(t), "log_level")
	if err != nil {
		t.Fatalf("GetValue on new config failed: %v", err)
	}
	if v != "info" {
		t.Errorf("expected default log_level=info, got %v", v)
	}
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"log_level", "debug", "debug"},
		{"max_concurrent", "16", float64(16)},
		{"llm.temperature", "0.3", 0.3},
		{"editorial.include_visuals", "true", true},
		{"channels.intake", "12345", "12345"},
		{"telegram.token", "123:abc", "123:abc"},
		{"speech.voices", `[{"name":"Ali","id":"v-2"}]`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			path := tempConfigPath(t)
			writeTestConfig(t, path, Default())

			if err := SetValue(path, tt.key, tt.value); err != nil {
				t.Fatalf("SetValue failed: %v", err)
			}
			if tt.want != nil {
				v, err := GetValue(path, tt.key)
				if err != nil {
					t.Fatal(err)
				}
				if v != tt.want {
					t.Errorf("expected %v (%T), got %v (%T)", tt.want, tt.want, v, v)
				}
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if tt.key != "llm.provider" && cfg.LLM.Provider != "openai" {
				t.Errorf("other values not preserved: provider %q", cfg.LLM.Provider)
			}
			if tt.key == "speech.voices" && (len(cfg.Speech.Voices) != 1 || cfg.Speech.Voices[0].ID != "v-2") {
				t.Errorf("unexpected voices %+v", cfg.Speech.Voices)
			}
		})
	}
}

func TestSetValue_Rejects(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, Default())

	tests := []struct {
		key, value, wantErr string
	}{
		{"custom.setting", "value", "unknown config key"},
		{"max_concurrent", "many", "expects a number"},
		{"max_concurrent", "2.5", "invalid value"},
		{"http.enabled", "maybe", "expects true or false"},
		{"speech.voices", "Ali", "expects JSON"},
	}
	for _, tt := range tests {
		err := SetValue(path, tt.key, tt.value)
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s=%s: expected error containing %q, got %v", tt.key, tt.value, tt.wantErr, err)
		}
	}
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	if err := SetValue(path, "log_level", "debug"); err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxConcurrent != 2 || cfg.Speech.PacingMS != 1000 || cfg.Delivery.TextPacingMS != 1000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Generation.Editorial.MaxTokens != 4000 {
		t.Errorf("expected editorial max_tokens 4000, got %d", cfg.Generation.Editorial.MaxTokens)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected defaults written to disk: %v", err)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte(`{"channels":{"intake":"telegram:-100"},"speech":{"voices":[{"name":"Ayesha","id":"v-a"}]}}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channels.Intake != "telegram:-100" {
		t.Errorf("expected intake from file, got %q", cfg.Channels.Intake)
	}
	if len(cfg.Speech.Voices) != 1 || cfg.Speech.Voices[0].ID != "v-a" {
		t.Errorf("unexpected voices %+v", cfg.Speech.Voices)
	}
	if cfg.Speech.Model != "eleven_multilingual_v2" {
		t.Errorf("expected default speech model, got %q", cfg.Speech.Model)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("ELEVENLABS_API_KEY", "xi-env")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-env")
	t.Setenv("SCRIPTDESK_INTAKE_CHANNEL", "whatsapp:group:Newsroom")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-env" || cfg.Speech.APIKey != "xi-env" || cfg.Telegram.Token != "tg-env" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Channels.Intake != "whatsapp:group:Newsroom" {
		t.Errorf("expected intake override, got %q", cfg.Channels.Intake)
	}
}

func TestLoad_GeminiKey(t *testing.T) {
	path := tempConfigPath(t)
	cfg := Default()
	cfg.LLM.Provider = "gemini"
	writeTestConfig(t, path, cfg)
	t.Setenv("GEMINI_API_KEY", "gm-env")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.LLM.APIKey != "gm-env" {
		t.Errorf("expected gemini key, got %q", loaded.LLM.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "other" }, true},
		{"no model", func(c *Config) { c.LLM.Model = "" }, true},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }, true},
		{"speech without voice", func(c *Config) { c.Speech.APIKey = "xi" }, true},
		{"speech with voice", func(c *Config) {
			c.Speech.APIKey = "xi"
			c.Speech.DefaultVoice = Voice{Name: "N", ID: "v"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
