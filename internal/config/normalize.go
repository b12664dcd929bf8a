package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// applyEnv lets the environment (and a loaded .env) override secrets and
// the few settings commonly changed per shell.
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Gemini.APIKey, "GEMINI_API_KEY")
	set(&c.Gemini.Model, "GEMINI_MODEL")
	set(&c.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	set(&c.OpenRouter.Model, "OPENROUTER_MODEL")
	set(&c.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	set(&c.Paths.WorkDir, "REELCUT_WORK_DIR")
	if v, ok := os.LookupEnv("OPENROUTER_ALLOWED_HOSTS"); ok && strings.TrimSpace(v) != "" {
		c.OpenRouter.AllowedHosts = strings.Split(v, ",")
	}
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSelector()
	if err := c.normalizeTranscription(); err != nil {
		return err
	}
	if err := c.normalizeTracking(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Database) == "" {
		c.Paths.Database = filepath.Join(c.Paths.WorkDir, "reelcut.db")
	}
	if c.Paths.Database, err = expandPath(strings.TrimSpace(c.Paths.Database)); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	return nil
}

func (c *Config) normalizeSelector() {
	c.Selector.Backend = strings.ToLower(strings.TrimSpace(c.Selector.Backend))
	if c.Selector.Backend == "" {
		c.Selector.Backend = defaultSelectorBackend
	}
	c.Selector.Language = strings.TrimSpace(c.Selector.Language)
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	c.OpenRouter.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenRouter.BaseURL), "/")
}

func (c *Config) normalizeTranscription() error {
	c.Transcription.Strategy = strings.ToLower(strings.TrimSpace(c.Transcription.Strategy))
	if c.Transcription.Strategy == "" {
		c.Transcription.Strategy = defaultStrategy
	}
	if strings.TrimSpace(c.Transcription.PlaceholderText) == "" {
		c.Transcription.PlaceholderText = defaultPlaceholderText
	}
	var err error
	if c.Transcription.WhisperModel, err = expandPath(strings.TrimSpace(c.Transcription.WhisperModel)); err != nil {
		return fmt.Errorf("transcription.whisper_model: %w", err)
	}
	return nil
}

func (c *Config) normalizeTracking() error {
	if c.Tracking.Samples <= 0 {
		c.Tracking.Samples = defaultTrackingSamples
	}
	var err error
	if c.Tracking.CascadePath, err = expandPath(strings.TrimSpace(c.Tracking.CascadePath)); err != nil {
		return fmt.Errorf("tracking.cascade_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.Preset = strings.TrimSpace(c.Render.Preset)
	if c.Render.Preset == "" {
		c.Render.Preset = defaultPreset
	}
	if c.Render.Concurrency <= 0 {
		c.Render.Concurrency = 1
	}
	if strings.TrimSpace(c.Render.FFmpeg) == "" {
		c.Render.FFmpeg = "ffmpeg"
	}
	if strings.TrimSpace(c.Render.FFprobe) == "" {
		c.Render.FFprobe = "ffprobe"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
