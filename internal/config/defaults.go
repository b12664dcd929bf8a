package config

const (
	defaultWorkDir           = "~/.local/share/reelcut"
	defaultSelectorBackend   = "gemini"
	defaultWindowSeconds     = 120
	defaultMinCount          = 3
	defaultMaxCount          = 10
	defaultMinDuration       = 30
	defaultMaxDuration       = 90
	defaultGeminiBaseURL     = "https://generativelanguage.googleapis.com"
	defaultGeminiModel       = "gemini-2.5-flash"
	defaultGeminiTimeout     = 300
	defaultGeminiPoll        = 2
	defaultGeminiProcessing  = 600
	defaultOpenRouterBaseURL = "https://openrouter.ai"
	defaultOpenRouterModel   = "z-ai/glm-4.5-air:free"
	defaultOpenRouterTimeout = 90
	defaultStrategy          = "gemini"
	defaultWhisperBin        = "whisper-cli"
	defaultWhisperModel      = "~/.cache/reelcut/models/ggml-base.bin"
	defaultPlaceholderText   = "..."
	defaultTrackingSamples   = 10
	defaultMinFaceSize       = 40
	defaultMinQuality        = 5
	defaultSubtitleFont      = "Inter"
	defaultSubtitleSize      = 16
	defaultPrimaryColor      = "&H00FFFFFF"
	defaultOutlineColor      = "&H00000000"
	defaultEncodeTimeout     = 1800
	defaultCRF               = 20
	defaultPreset            = "veryfast"
	defaultConcurrency       = 2
	defaultRetryAttempts     = 5
	defaultRetryBaseMS       = 1000
	defaultRetryMaxMS        = 30000
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultYTDLP             = "yt-dlp"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
		},
		Selector: Selector{
			Backend:       defaultSelectorBackend,
			WindowSeconds: defaultWindowSeconds,
			MinCount:      defaultMinCount,
			MaxCount:      defaultMaxCount,
			MinDuration:   defaultMinDuration,
			MaxDuration:   defaultMaxDuration,
		},
		Gemini: Gemini{
			BaseURL:           defaultGeminiBaseURL,
			Model:             defaultGeminiModel,
			RequestTimeout:    defaultGeminiTimeout,
			PollInterval:      defaultGeminiPoll,
			ProcessingTimeout: defaultGeminiProcessing,
		},
		OpenRouter: OpenRouter{
			BaseURL:        defaultOpenRouterBaseURL,
			Model:          defaultOpenRouterModel,
			RequestTimeout: defaultOpenRouterTimeout,
		},
		Transcription: Transcription{
			Strategy:        defaultStrategy,
			WhisperBin:      defaultWhisperBin,
			WhisperModel:    defaultWhisperModel,
			PlaceholderText: defaultPlaceholderText,
		},
		Tracking: Tracking{
			Samples:     defaultTrackingSamples,
			MinFaceSize: defaultMinFaceSize,
			MinQuality:  defaultMinQuality,
		},
		Subtitles: Subtitles{
			Font:         defaultSubtitleFont,
			Size:         defaultSubtitleSize,
			PrimaryColor: defaultPrimaryColor,
			OutlineColor: defaultOutlineColor,
			Outline:      2,
			Shadow:       1,
			MarginV:      60,
			Alignment:    2,
			Bold:         true,
		},
		Render: Render{
			EncodeTimeout: defaultEncodeTimeout,
			CRF:           defaultCRF,
			Preset:        defaultPreset,
			Concurrency:   defaultConcurrency,
			FFmpeg:        "ffmpeg",
			FFprobe:       "ffprobe",
		},
		Retry: Retry{
			MaxAttempts: defaultRetryAttempts,
			BaseDelayMS: defaultRetryBaseMS,
			MaxDelayMS:  defaultRetryMaxMS,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Fetch: Fetch{
			YTDLP: defaultYTDLP,
		},
	}
}
