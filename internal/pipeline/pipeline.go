// Package pipeline wires configuration into adapters and the orchestrator.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/domain/highlights"
	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/domain/tracking"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/reelcut/internal/ports/adapters/gemini"
	"github.com/forPelevin/reelcut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/reelcut/internal/ports/adapters/pigo"
	"github.com/forPelevin/reelcut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/reelcut/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/reelcut/internal/progress"
	"github.com/forPelevin/reelcut/internal/render"
	"github.com/forPelevin/reelcut/internal/retry"
	"github.com/forPelevin/reelcut/internal/selector"
	"github.com/forPelevin/reelcut/internal/store"
	"github.com/forPelevin/reelcut/internal/transcribe"
	"github.com/forPelevin/reelcut/internal/usecase"
)

// App holds the wired orchestrator and the resources it owns.
type App struct {
	Config  *config.Config
	Store   *store.Store
	Usecase *usecase.Usecase
	Logger  *slog.Logger
}

// Options tune wiring for a single invocation.
type Options struct {
	Logger *slog.Logger
	// Logf receives human-readable milestone lines.
	Logf func(format string, args ...any)
}

// Build opens the store and wires every adapter named by cfg.
func Build(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	media := ffmpeg.New(cfg.Render.FFmpeg, cfg.Render.FFprobe)
	policy := RetryPolicy(cfg)

	var geminiClient *gemini.Client
	if cfg.Gemini.APIKey != "" {
		geminiClient = newGeminiClient(cfg)
	}

	proposer, err := newProposer(cfg, geminiClient)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	transcriber, err := newTranscriber(cfg, geminiClient)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engine := transcribe.New(transcriber, policy, cfg.Transcription.PlaceholderText, logger)
	tracker := &tracking.Tracker{
		Frames:  media,
		Faces:   newFaceDetector(cfg),
		Samples: cfg.Tracking.Samples,
		Logger:  logging.NewComponentLogger(logger, "tracking"),
	}

	uc := usecase.New(usecase.Deps{
		Store:       st,
		Media:       media,
		Fetcher:     ytdlp.New(cfg.Fetch.YTDLP, cfg.Fetch.Format, cfg.Fetch.CookiesPath),
		Selector:    selector.New(proposer, Rules(cfg), policy, logger),
		Transcripts: engine,
		Renderer: &render.Executor{
			Media:         media,
			Captions:      engine,
			Tracker:       tracker,
			Style:         Style(cfg),
			EncodeTimeout: cfg.EncodeTimeout(),
			CRF:           cfg.Render.CRF,
			Preset:        cfg.Render.Preset,
			Logger:        logger,
		},
		Drafts: &render.Preparer{
			Media:         media,
			Captions:      engine,
			EncodeTimeout: cfg.EncodeTimeout(),
			CRF:           cfg.Render.CRF,
			Preset:        cfg.Render.Preset,
			Logger:        logger,
		},
		Progress: progress.New(st, logger, opts.Logf),
		RunsDir:  cfg.RunsDir(),
		Logger:   logger,
	})

	logger.Debug("pipeline wired",
		logging.String("backend", cfg.Selector.Backend),
		logging.String("transcription", cfg.Transcription.Strategy),
		logging.String("database", st.Path()),
	)
	return &App{Config: cfg, Store: st, Usecase: uc, Logger: logger}, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// RetryPolicy converts the retry section into a policy. The retryable
// predicate is left to each consumer.
func RetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
	}
}

func Rules(cfg *config.Config) highlights.Rules {
	return highlights.Rules{
		WindowSec:      cfg.Selector.WindowSeconds,
		MinCount:       cfg.Selector.MinCount,
		MaxCount:       cfg.Selector.MaxCount,
		MinDurationSec: cfg.Selector.MinDuration,
		MaxDurationSec: cfg.Selector.MaxDuration,
		Language:       cfg.Selector.Language,
	}
}

func Style(cfg *config.Config) subtitles.Style {
	s := cfg.Subtitles
	return subtitles.Style{
		Font:         s.Font,
		Size:         s.Size,
		PrimaryColor: s.PrimaryColor,
		OutlineColor: s.OutlineColor,
		Outline:      s.Outline,
		Shadow:       s.Shadow,
		MarginV:      s.MarginV,
		Alignment:    s.Alignment,
		Bold:         s.Bold,
	}
}

func newGeminiClient(cfg *config.Config) *gemini.Client {
	c := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL)
	c.SetRequestTimeout(time.Duration(cfg.Gemini.RequestTimeout) * time.Second)
	if cfg.Gemini.PollInterval > 0 {
		c.PollInterval = time.Duration(cfg.Gemini.PollInterval) * time.Second
	}
	if cfg.Gemini.ProcessingTimeout > 0 {
		c.ActivateTimeout = time.Duration(cfg.Gemini.ProcessingTimeout) * time.Second
	}
	return c
}

func newProposer(cfg *config.Config, client *gemini.Client) (ports.SegmentProposer, error) {
	switch cfg.Selector.Backend {
	case "gemini":
		if client == nil {
			return nil, errors.New("selector backend gemini needs gemini.api_key")
		}
		return gemini.NewProposer(client), nil
	case "openrouter":
		if err := openrouter.ValidateBaseURL(cfg.OpenRouter.BaseURL, cfg.OpenRouter.AllowedHosts); err != nil {
			return nil, err
		}
		a := openrouter.New(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model, cfg.OpenRouter.BaseURL)
		a.SetTimeout(time.Duration(cfg.OpenRouter.RequestTimeout) * time.Second)
		return a, nil
	default:
		return nil, fmt.Errorf("unknown selector backend %q", cfg.Selector.Backend)
	}
}

func newTranscriber(cfg *config.Config, client *gemini.Client) (ports.Transcriber, error) {
	switch cfg.Transcription.Strategy {
	case "gemini":
		if client == nil {
			return nil, errors.New("transcription strategy gemini needs gemini.api_key")
		}
		return gemini.NewTranscriber(client), nil
	case "whisper":
		model := whispercpp.NewModel(cfg.Transcription.WhisperBin, cfg.Transcription.WhisperModel, cfg.Transcription.WhisperThreads)
		return whispercpp.New(model, cfg.Transcription.Language), nil
	default:
		return nil, fmt.Errorf("unknown transcription strategy %q", cfg.Transcription.Strategy)
	}
}

// newFaceDetector uses the built-in facefinder cascade unless a path is set.
func newFaceDetector(cfg *config.Config) ports.FaceDetector {
	return pigo.New(cfg.Tracking.CascadePath, cfg.Tracking.MinFaceSize, float64(cfg.Tracking.MinQuality))
}

// ensure adapters implement ports
var (
	_ ports.MediaTool       = (*ffmpeg.Adapter)(nil)
	_ ports.Transcriber     = (*whispercpp.Transcriber)(nil)
	_ ports.Transcriber     = (*gemini.Transcriber)(nil)
	_ ports.SegmentProposer = (*gemini.Proposer)(nil)
	_ ports.SegmentProposer = (*openrouter.Adapter)(nil)
	_ ports.NeedsTranscript = (*openrouter.Adapter)(nil)
	_ ports.FaceDetector    = (*pigo.Detector)(nil)
	_ ports.Fetcher         = (*ytdlp.Fetcher)(nil)
	_ ports.Store           = (*store.Store)(nil)
)
