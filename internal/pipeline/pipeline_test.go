package pipeline

import (
	"image"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/reelcut/internal/ports/adapters/pigo"
	"github.com/forPelevin/reelcut/internal/testsupport"
)

func TestBuildWiresDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	app, err := Build(cfg, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	if app.Usecase == nil || app.Store == nil {
		t.Fatalf("expected wired app, got %+v", app)
	}
	if got := app.Usecase.RunDir("abc"); !strings.HasSuffix(got, "runs/abc") {
		t.Fatalf("unexpected run dir %q", got)
	}
}

func TestBuildOpenRouterBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBackend("openrouter"))
	cfg.Transcription.Strategy = "whisper"
	app, err := Build(cfg, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()
}

func TestBuildRejectsMissingProviderKey(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*testing.T) error
		want   string
	}{
		{
			name: "gemini backend without key",
			mutate: func(t *testing.T) error {
				cfg := testsupport.NewConfig(t)
				cfg.Gemini.APIKey = ""
				_, err := Build(cfg, Options{})
				return err
			},
			want: "gemini.api_key",
		},
		{
			name: "openrouter host not allowed",
			mutate: func(t *testing.T) error {
				cfg := testsupport.NewConfig(t, testsupport.WithBackend("openrouter"))
				cfg.OpenRouter.BaseURL = "https://evil.example"
				_, err := Build(cfg, Options{})
				return err
			},
			want: "OPENROUTER_ALLOWED_HOSTS",
		},
		{
			name: "unknown strategy",
			mutate: func(t *testing.T) error {
				cfg := testsupport.NewConfig(t)
				cfg.Transcription.Strategy = "vosk"
				_, err := Build(cfg, Options{})
				return err
			},
			want: "vosk",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(t)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retry.MaxAttempts = 4
	cfg.Retry.BaseDelayMS = 250
	cfg.Retry.MaxDelayMS = 8000

	p := RetryPolicy(cfg)
	if p.MaxAttempts != 4 || p.BaseDelay != 250*time.Millisecond || p.MaxDelay != 8*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
	if p.Retryable != nil {
		t.Fatalf("expected consumers to choose the predicate")
	}
}

func TestRulesAndStyleFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Selector.MinDuration = 20
	cfg.Subtitles.Font = "Roboto"

	if r := Rules(cfg); r.MinDurationSec != 20 || r.WindowSec != 120 || r.MaxCount != 10 {
		t.Fatalf("unexpected rules %+v", r)
	}
	if s := Style(cfg).ForceStyle(); !strings.Contains(s, "FontName=Roboto") {
		t.Fatalf("unexpected style %q", s)
	}
}

func TestFaceDetectorUsesBuiltinCascade(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, ok := newFaceDetector(cfg).(*pigo.Detector)
	if !ok {
		t.Fatalf("expected pigo detector, got %T", newFaceDetector(cfg))
	}
	if _, err := d.Detect(image.NewGray(image.Rect(0, 0, 64, 64))); err != nil {
		t.Fatalf("expected built-in cascade to load, got %v", err)
	}
}
