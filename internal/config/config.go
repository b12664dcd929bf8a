package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory and database locations.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	Database string `toml:"database"`
}

// Selector contains the clip rules and the proposer backend.
type Selector struct {
	// Backend is "gemini" (multimodal) or "openrouter" (transcript only).
	Backend       string  `toml:"backend"`
	WindowSeconds float64 `toml:"window_seconds"`
	MinCount      int     `toml:"min_count"`
	MaxCount      int     `toml:"max_count"`
	MinDuration   float64 `toml:"min_duration"`
	MaxDuration   float64 `toml:"max_duration"`
	Language      string  `toml:"language"`
}

// Gemini contains configuration for the Gemini REST API.
type Gemini struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	RequestTimeout    int    `toml:"request_timeout"`
	PollInterval      int    `toml:"poll_interval"`
	ProcessingTimeout int    `toml:"processing_timeout"`
}

// OpenRouter contains configuration for the text-only proposer.
type OpenRouter struct {
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	Model          string   `toml:"model"`
	AllowedHosts   []string `toml:"allowed_hosts"`
	RequestTimeout int      `toml:"request_timeout"`
}

// Transcription selects and tunes the transcription strategy.
type Transcription struct {
	// Strategy is "gemini" or "whisper".
	Strategy        string `toml:"strategy"`
	WhisperBin      string `toml:"whisper_bin"`
	WhisperModel    string `toml:"whisper_model"`
	WhisperThreads  int    `toml:"whisper_threads"`
	Language        string `toml:"language"`
	PlaceholderText string `toml:"placeholder_text"`
}

// Tracking configures face-centroid sampling and the detector.
type Tracking struct {
	Samples     int     `toml:"samples"`
	CascadePath string  `toml:"cascade_path"`
	MinFaceSize int     `toml:"min_face_size"`
	MinQuality  float32 `toml:"min_quality"`
}

// Subtitles holds the burned-in caption style.
type Subtitles struct {
	Font         string `toml:"font"`
	Size         int    `toml:"size"`
	PrimaryColor string `toml:"primary_color"`
	OutlineColor string `toml:"outline_color"`
	Outline      int    `toml:"outline"`
	Shadow       int    `toml:"shadow"`
	MarginV      int    `toml:"margin_v"`
	Alignment    int    `toml:"alignment"`
	Bold         bool   `toml:"bold"`
}

// Render contains encoder settings.
type Render struct {
	EncodeTimeout int    `toml:"encode_timeout"`
	CRF           int    `toml:"crf"`
	Preset        string `toml:"preset"`
	Concurrency   int    `toml:"concurrency"`
	FFmpeg        string `toml:"ffmpeg"`
	FFprobe       string `toml:"ffprobe"`
}

// Retry bounds backoff for rate-limited AI calls.
type Retry struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Fetch configures downloading of URL sources.
type Fetch struct {
	YTDLP       string `toml:"ytdlp"`
	Format      string `toml:"format"`
	CookiesPath string `toml:"cookies_path"`
}

// Config encapsulates all configuration values for reelcut.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Selector      Selector      `toml:"selector"`
	Gemini        Gemini        `toml:"gemini"`
	OpenRouter    OpenRouter    `toml:"openrouter"`
	Transcription Transcription `toml:"transcription"`
	Tracking      Tracking      `toml:"tracking"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Render        Render        `toml:"render"`
	Retry         Retry         `toml:"retry"`
	Logging       Logging       `toml:"logging"`
	Fetch         Fetch         `toml:"fetch"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelcut/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file and before validation.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("reelcut.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the working directory and the database parent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, filepath.Dir(c.Paths.Database)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunsDir is where per-run directories live.
func (c *Config) RunsDir() string {
	return filepath.Join(c.Paths.WorkDir, "runs")
}

func (c *Config) EncodeTimeout() time.Duration {
	return time.Duration(c.Render.EncodeTimeout) * time.Second
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
