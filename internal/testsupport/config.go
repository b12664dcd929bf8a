package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/forPelevin/reelcut/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Gemini.APIKey = "test"
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.Database = filepath.Join(base, "work", "reelcut.db")
	cfgVal.Retry.BaseDelayMS = 1
	cfgVal.Retry.MaxDelayMS = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBackend switches the selector backend.
func WithBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Selector.Backend = name
		if name == "openrouter" && b.cfg.OpenRouter.APIKey == "" {
			b.cfg.OpenRouter.APIKey = "test"
		}
	}
}

func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.Concurrency = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
