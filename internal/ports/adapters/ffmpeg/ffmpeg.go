package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/reelcut/internal/domain/geometry"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

const (
	defaultCRF    = 20
	defaultPreset = "veryfast"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// CommandError carries the combined output of a failed ffmpeg call.
type CommandError struct {
	Op     string
	Err    error
	Output string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("ffmpeg %s: %v\n%s", e.Op, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Stderr returns what ffmpeg printed before failing.
func (e *CommandError) Stderr() string { return e.Output }

func (a *Adapter) run(ctx context.Context, op string, args ...string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return &CommandError{Op: op, Err: err, Output: strings.TrimSpace(string(b))}
	}
	return nil
}

func (a *Adapter) Trim(ctx context.Context, in string, seg types.Segment, out string) error {
	if !seg.Valid() {
		return fmt.Errorf("ffmpeg trim: invalid segment %s", seg)
	}
	return a.run(ctx, "trim",
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", fmtSeconds(seg.Start),
		"-i", in,
		"-t", fmtSeconds(seg.Duration()),
		"-map", "0:v:0", "-map", "0:a:0?",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		out,
	)
}

func (a *Adapter) ExtractAudio(ctx context.Context, in, outWav string) error {
	return a.run(ctx, "extract audio",
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outWav,
	)
}

// Frame decodes the frame at `at` seconds as PNG through a pipe.
func (a *Adapter) Frame(ctx context.Context, path string, at float64) (image.Image, error) {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-ss", fmtSeconds(at),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &CommandError{Op: "frame", Err: err, Output: strings.TrimSpace(stderr.String())}
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg frame: no frame at %.3fs", at)
	}
	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.3fs: %w", at, err)
	}
	return img, nil
}

// Encode crops, converts to yuv420p, optionally burns subtitles, and encodes
// H.264/AAC in a single pass.
func (a *Adapter) Encode(ctx context.Context, spec ports.EncodeSpec) error {
	if spec.Input == "" || spec.Output == "" {
		return errors.New("ffmpeg encode: input and output are required")
	}
	crf := spec.CRF
	if crf <= 0 {
		crf = defaultCRF
	}
	preset := spec.Preset
	if preset == "" {
		preset = defaultPreset
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", spec.Input,
		"-vf", VideoFilter(spec),
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
	}
	if spec.Silent {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}
	args = append(args, "-movflags", "+faststart", spec.Output)
	return a.run(ctx, "encode", args...)
}

// VideoFilter builds the -vf chain for spec.
func VideoFilter(spec ports.EncodeSpec) string {
	filters := []string{geometry.Filter(spec.Crop)}
	// yuv420p needs even dimensions; 720p sources crop to 405 wide.
	if w, h := spec.Crop.Width, spec.Crop.Height; w%2 != 0 || h%2 != 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", w&^1, h&^1))
	}
	filters = append(filters, "format=yuv420p")
	if spec.SubtitlePath != "" {
		f := "subtitles=filename=" + escapeFilterPath(spec.SubtitlePath)
		if spec.ForceStyle != "" {
			f += ":force_style='" + spec.ForceStyle + "'"
		}
		filters = append(filters, f)
	}
	return strings.Join(filters, ",")
}

func fmtSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	p = strings.ReplaceAll(p, ",", "\\,")
	return p
}
