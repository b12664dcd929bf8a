package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/config"
)

type doctorCheck struct {
	name     string
	ok       bool
	optional bool
	detail   string
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Short:       "Check external tools and provider credentials",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgErr := ctx.ensureConfig()
			checks := []doctorCheck{configCheck(cfgErr)}
			if cfg == nil {
				def := config.Default()
				cfg = &def
			}
			checks = append(checks, toolChecks(cfg, exec.LookPath)...)

			rows := make([][]string, 0, len(checks))
			failed := 0
			for _, c := range checks {
				status := "ok"
				switch {
				case !c.ok && c.optional:
					status = "warn"
				case !c.ok:
					status = "missing"
					failed++
				}
				rows = append(rows, []string{c.name, status, c.detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if failed > 0 {
				return fmt.Errorf("%d required check(s) failed", failed)
			}
			return nil
		},
	}
}

func configCheck(err error) doctorCheck {
	if err != nil {
		return doctorCheck{name: "config", detail: err.Error()}
	}
	return doctorCheck{name: "config", ok: true, detail: "loaded"}
}

func toolChecks(cfg *config.Config, lookPath func(string) (string, error)) []doctorCheck {
	binary := func(name, bin string, optional bool, hint string) doctorCheck {
		path, err := lookPath(bin)
		if err != nil {
			return doctorCheck{name: name, optional: optional, detail: fmt.Sprintf("%s not found on PATH; %s", bin, hint)}
		}
		return doctorCheck{name: name, ok: true, optional: optional, detail: path}
	}

	checks := []doctorCheck{
		binary("ffmpeg", cfg.Render.FFmpeg, false, "install ffmpeg"),
		binary("ffprobe", cfg.Render.FFprobe, false, "install ffmpeg"),
		binary("yt-dlp", cfg.Fetch.YTDLP, true, "needed only for URL sources"),
	}

	if cfg.Transcription.Strategy == "whisper" {
		checks = append(checks,
			binary("whisper", cfg.Transcription.WhisperBin, false, "build whisper.cpp"),
			fileCheck("whisper model", cfg.Transcription.WhisperModel, false),
		)
	}
	if cfg.Tracking.CascadePath != "" {
		checks = append(checks, fileCheck("face cascade", cfg.Tracking.CascadePath, true))
	} else {
		checks = append(checks, doctorCheck{name: "face cascade", ok: true, optional: true, detail: "built-in facefinder"})
	}

	checks = append(checks, keyCheck("gemini key", cfg.Gemini.APIKey, "GEMINI_API_KEY",
		cfg.Selector.Backend == "gemini" || cfg.Transcription.Strategy == "gemini"))
	if cfg.Selector.Backend == "openrouter" {
		checks = append(checks, keyCheck("openrouter key", cfg.OpenRouter.APIKey, "OPENROUTER_API_KEY", true))
	}
	return checks
}

func fileCheck(name, path string, optional bool) doctorCheck {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return doctorCheck{name: name, optional: optional, detail: path + " does not exist"}
	case err != nil:
		return doctorCheck{name: name, optional: optional, detail: err.Error()}
	case info.IsDir():
		return doctorCheck{name: name, optional: optional, detail: path + " is a directory"}
	}
	return doctorCheck{name: name, ok: true, optional: optional, detail: path}
}

func keyCheck(name, value, env string, required bool) doctorCheck {
	if strings.TrimSpace(value) != "" {
		return doctorCheck{name: name, ok: true, optional: !required, detail: "set"}
	}
	return doctorCheck{name: name, optional: !required, detail: "set " + env}
}
