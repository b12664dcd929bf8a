package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads duration, frame size and frame rate of the first video stream.
func (a *Adapter) Probe(ctx context.Context, path string) (types.SourceVideo, error) {
	if strings.TrimSpace(path) == "" {
		return types.SourceVideo{}, errors.New("ffprobe: empty path")
	}
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json",
		"--", path,
	)
	b, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return types.SourceVideo{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return types.SourceVideo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(path, b)
}

func parseProbe(path string, b []byte) (types.SourceVideo, error) {
	var res probeResult
	if err := json.Unmarshal(b, &res); err != nil {
		return types.SourceVideo{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	out := types.SourceVideo{Path: path, DurationSec: parseFloat(res.Format.Duration)}
	for _, s := range res.Streams {
		if !strings.EqualFold(s.CodecType, "video") || s.Width <= 0 || s.Height <= 0 {
			continue
		}
		out.Width, out.Height = s.Width, s.Height
		out.FPS = parseRate(s.AvgFrameRate)
		if out.FPS <= 0 {
			out.FPS = parseRate(s.RFrameRate)
		}
		if out.DurationSec <= 0 {
			out.DurationSec = parseFloat(s.Duration)
		}
		break
	}
	if out.Width == 0 {
		return types.SourceVideo{}, fmt.Errorf("ffprobe %s: no video stream", path)
	}
	if out.DurationSec <= 0 {
		return types.SourceVideo{}, fmt.Errorf("ffprobe %s: unknown duration", path)
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

// parseRate reads "30000/1001" style rates.
func parseRate(v string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(v), "/")
	if !ok {
		return parseFloat(v)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}
