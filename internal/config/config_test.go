package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/forPelevin/reelcut/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "GEMINI_MODEL", "OPENROUTER_API_KEY", "OPENROUTER_MODEL", "OPENROUTER_BASE_URL", "OPENROUTER_ALLOWED_HOSTS", "REELCUT_WORK_DIR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "reelcut", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	wantWork := filepath.Join(tempHome, ".local", "share", "reelcut")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.Database != filepath.Join(wantWork, "reelcut.db") {
		t.Fatalf("unexpected database path %q", cfg.Paths.Database)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Fatalf("expected env key, got %q", cfg.Gemini.APIKey)
	}
	if cfg.EncodeTimeout() != 30*time.Minute {
		t.Fatalf("expected 30m encode timeout, got %s", cfg.EncodeTimeout())
	}
}

func TestLoadRequiresGeminiKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil || !strings.Contains(err.Error(), "gemini.api_key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "reelcut.toml")
	body := `
[paths]
work_dir = "` + filepath.ToSlash(filepath.Join(dir, "work")) + `"

[selector]
backend = "openrouter"
min_count = 2
max_count = 4

[openrouter]
api_key = "sk-test"

[transcription]
strategy = "whisper"
whisper_model = "` + filepath.ToSlash(filepath.Join(dir, "ggml.bin")) + `"

[render]
concurrency = 0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Selector.Backend != "openrouter" || cfg.Selector.MinCount != 2 || cfg.Selector.MaxCount != 4 {
		t.Fatalf("unexpected selector config %+v", cfg.Selector)
	}
	if cfg.Render.Concurrency != 1 {
		t.Fatalf("expected concurrency to be normalized to 1, got %d", cfg.Render.Concurrency)
	}
	if cfg.RunsDir() != filepath.Join(dir, "work", "runs") {
		t.Fatalf("unexpected runs dir %q", cfg.RunsDir())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Selector.Backend = "vertex" }, "selector.backend"},
		{"counts", func(c *config.Config) { c.Selector.MinCount = 5; c.Selector.MaxCount = 2 }, "selector.min_count"},
		{"durations", func(c *config.Config) { c.Selector.MaxDuration = 10 }, "selector.min_duration"},
		{"strategy", func(c *config.Config) { c.Transcription.Strategy = "vosk" }, "transcription.strategy"},
		{"crf", func(c *config.Config) { c.Render.CRF = 80 }, "render.crf"},
		{"retry", func(c *config.Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"openrouter host", func(c *config.Config) {
			c.Selector.Backend = "openrouter"
			c.OpenRouter.APIKey = "k"
			c.OpenRouter.BaseURL = "https://evil.example.com"
		}, "OPENROUTER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Gemini.APIKey = "k"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	cfg.Gemini.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if parsed.Selector.WindowSeconds != 120 || parsed.Render.EncodeTimeout != 1800 {
		t.Fatalf("unexpected sample values %+v %+v", parsed.Selector, parsed.Render)
	}
}
