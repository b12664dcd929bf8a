//go:build integration

package itest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not locate go.mod")
		}
		dir = parent
	}
}

type clipInfo struct {
	Width       int
	Height      int
	DurationSec float64
	HasAudio    bool
}

// probeClip reads the first video stream and the container duration of an
// output file.
func probeClip(path string) (clipInfo, error) {
	b, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "stream=codec_type,width,height:format=duration",
		"-of", "json",
		path,
	).CombinedOutput()
	if err != nil {
		return clipInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}

	var out struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return clipInfo{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var info clipInfo
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width, info.Height = s.Width, s.Height
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if info.DurationSec, err = strconv.ParseFloat(out.Format.Duration, 64); err != nil {
		return clipInfo{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}
	return info, nil
}
