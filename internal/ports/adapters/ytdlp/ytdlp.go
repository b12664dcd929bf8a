package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/reelcut/internal/ports"
)

// DefaultFormat prefers MP4 video with M4A audio so trims can stream-copy.
const DefaultFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

type Fetcher struct {
	bin         string
	format      string
	cookiesPath string
	run         commandRunner
}

func New(binPath, format, cookiesPath string) *Fetcher {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if format == "" {
		format = DefaultFormat
	}
	return &Fetcher{bin: binPath, format: format, cookiesPath: cookiesPath, run: execRunner}
}

// WithCommandRunner swaps process execution, for tests.
func (f *Fetcher) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)) {
	f.run = runner
}

// IsURL reports whether src should be downloaded rather than opened.
func IsURL(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch downloads url into dir as source.<ext> and returns the final path and
// the video title reported by the site.
func (f *Fetcher) Fetch(ctx context.Context, url, dir string) (ports.FetchResult, error) {
	if strings.TrimSpace(url) == "" {
		return ports.FetchResult{}, errors.New("source URL is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ports.FetchResult{}, fmt.Errorf("create download dir: %w", err)
	}
	stdout, stderr, err := f.run(ctx, f.bin, f.args(url, dir)...)
	if err != nil {
		return ports.FetchResult{}, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	res := parsePrinted(stdout)
	if res.Path == "" {
		return ports.FetchResult{}, errors.New("yt-dlp did not report an output file")
	}
	if !filepath.IsAbs(res.Path) {
		res.Path = filepath.Join(dir, res.Path)
	}
	if _, err := os.Stat(res.Path); err != nil {
		return ports.FetchResult{}, fmt.Errorf("downloaded file missing: %w", err)
	}
	return res, nil
}

func (f *Fetcher) args(url, dir string) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--restrict-filenames",
		"-f", f.format,
		"--merge-output-format", "mp4",
		"-P", dir,
		"-o", "source.%(ext)s",
		"--print", "before_dl:title:%(title)s",
		"--print", "after_move:filepath",
	}
	if strings.TrimSpace(f.cookiesPath) != "" {
		args = append(args, "--cookies", f.cookiesPath)
	}
	return append(args, url)
}

func parsePrinted(stdout []byte) ports.FetchResult {
	var res ports.FetchResult
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if t, ok := strings.CutPrefix(line, "title:"); ok {
			res.Title = strings.TrimSpace(t)
			continue
		}
		// The final path is the last plain line.
		res.Path = line
	}
	return res
}
