package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/reelcut/internal/ports/adapters/openrouter"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSelector(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSelector() error {
	s := c.Selector
	switch s.Backend {
	case "gemini", "openrouter":
	default:
		return fmt.Errorf("selector.backend must be gemini or openrouter, got %q", s.Backend)
	}
	if s.WindowSeconds <= 0 {
		return errors.New("selector.window_seconds must be positive")
	}
	if s.MinCount < 1 || s.MaxCount < s.MinCount {
		return fmt.Errorf("selector.min_count (%d) must be >= 1 and <= selector.max_count (%d)", s.MinCount, s.MaxCount)
	}
	if s.MinDuration <= 0 || s.MaxDuration < s.MinDuration {
		return fmt.Errorf("selector.min_duration (%.0f) must be positive and <= selector.max_duration (%.0f)", s.MinDuration, s.MaxDuration)
	}
	return nil
}

// validateProviders checks credentials for the providers the selected
// backends actually use.
func (c *Config) validateProviders() error {
	needsGemini := c.Selector.Backend == "gemini" || c.Transcription.Strategy == "gemini"
	if needsGemini && strings.TrimSpace(c.Gemini.APIKey) == "" {
		return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'reelcut config init')", configHint())
	}
	if needsGemini && (c.Gemini.PollInterval <= 0 || c.Gemini.ProcessingTimeout <= 0) {
		return errors.New("gemini.poll_interval and gemini.processing_timeout must be positive")
	}
	if c.Selector.Backend == "openrouter" {
		if strings.TrimSpace(c.OpenRouter.APIKey) == "" {
			return fmt.Errorf("openrouter.api_key is required. Set OPENROUTER_API_KEY env var or edit %s", configHint())
		}
		if err := openrouter.ValidateBaseURL(c.OpenRouter.BaseURL, c.OpenRouter.AllowedHosts); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Strategy {
	case "gemini":
	case "whisper":
		if c.Transcription.WhisperModel == "" {
			return errors.New("transcription.whisper_model must be set when transcription.strategy is whisper")
		}
	default:
		return fmt.Errorf("transcription.strategy must be gemini or whisper, got %q", c.Transcription.Strategy)
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.EncodeTimeout <= 0 {
		return errors.New("render.encode_timeout must be positive")
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return errors.New("render.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelayMS < 0 || c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.base_delay_ms must be >= 0 and <= retry.max_delay_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func configHint() string {
	p, err := DefaultConfigPath()
	if err != nil {
		return "~/.config/reelcut/config.toml"
	}
	return p
}
