// Package tracking estimates the horizontal position of the main speaker.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

const DefaultSamples = 10

// Tracker samples frames of a clip and averages the centre of the largest
// face in each.
type Tracker struct {
	Frames  ports.FrameGrabber
	Faces   ports.FaceDetector
	Samples int
	Logger  *slog.Logger
}

// Center returns the face centroid of seg in source pixel x. When seg is nil
// the whole of info is sampled. Frames without a usable face are skipped; no
// faces at all yields the frame centre.
func (t *Tracker) Center(ctx context.Context, path string, seg *types.Segment, info types.SourceVideo) (float64, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return 0, fmt.Errorf("track %s: unreadable video dimensions %dx%d", path, info.Width, info.Height)
	}
	span := types.Segment{Start: 0, End: info.DurationSec}
	if seg != nil {
		span = *seg
	}
	if !span.Valid() {
		return 0, fmt.Errorf("track %s: invalid span %s", path, span)
	}

	logger := logging.WithContext(ctx, t.Logger)
	points := SamplePoints(span, t.sampleCount(span, info.FPS))
	var sum float64
	var found int
	for _, at := range points {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		img, err := t.Frames.Frame(ctx, path, at)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, err
			}
			logger.Debug("frame skipped", logging.Float64("at", at), logging.Error(err))
			continue
		}
		faces, err := t.Faces.Detect(img)
		if err != nil {
			logger.Debug("face detection failed", logging.Float64("at", at), logging.Error(err))
			continue
		}
		face, ok := Largest(faces)
		if !ok {
			continue
		}
		imgW := img.Bounds().Dx()
		if imgW <= 0 {
			continue
		}
		rel := face.CenterX() / float64(imgW)
		sum += rel * float64(info.Width)
		found++
	}

	if found == 0 {
		logger.Info("no faces found, centring crop", logging.Int("samples", len(points)))
		return float64(info.Width) / 2, nil
	}
	center := sum / float64(found)
	logger.Debug("face centroid",
		logging.Float64("center_x", center),
		logging.Int("faces", found),
		logging.Int("samples", len(points)),
	)
	return center, nil
}

func (t *Tracker) sampleCount(span types.Segment, fps float64) int {
	n := t.Samples
	if n <= 0 {
		n = DefaultSamples
	}
	if fps > 0 {
		frames := int(math.Floor(span.Duration() * fps))
		n = min(n, frames)
	}
	return max(n, 1)
}

// SamplePoints spreads n timestamps evenly across span, one in the middle of
// each of n equal slices.
func SamplePoints(span types.Segment, n int) []float64 {
	if n < 1 {
		n = 1
	}
	step := span.Duration() / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = span.Start + (float64(i)+0.5)*step
	}
	return out
}

// Largest picks the face with the biggest area.
func Largest(faces []ports.Face) (ports.Face, bool) {
	if len(faces) == 0 {
		return ports.Face{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Area() > best.Area() {
			best = f
		}
	}
	return best, true
}
