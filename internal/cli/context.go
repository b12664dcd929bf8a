package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/pipeline"
)

type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

type commandContext struct {
	opts *globalOptions

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.opts.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if c.opts.logLevel != "" {
			cfg.Logging.Level = c.opts.logLevel
		}
		if c.opts.logFormat != "" {
			cfg.Logging.Format = c.opts.logFormat
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withApp wires the pipeline for one command and closes it afterwards.
// Milestones go to the command's stderr so stdout stays parseable.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(*pipeline.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	app, err := pipeline.Build(cfg, pipeline.Options{
		Logger: logger,
		Logf: func(format string, args ...any) {
			fmt.Fprintf(errOut, format+"\n", args...)
		},
	})
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func (c *commandContext) logger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Writer: w,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
