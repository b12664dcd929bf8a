// Package render turns a stored candidate into a vertical clip with burned
// captions, and prepares silent drafts for the external editor.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/forPelevin/reelcut/internal/domain/geometry"
	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/domain/tracking"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/transcribe"
	"github.com/forPelevin/reelcut/internal/types"
)

// DefaultEncodeTimeout bounds a single encode when none is configured.
const DefaultEncodeTimeout = 30 * time.Minute

// ErrRenderInProgress is returned when another render holds the candidate lock.
var ErrRenderInProgress = errors.New("render already in progress for candidate")

// EncodeError is a failed final encode. Stderr is the encoder's own output.
type EncodeError struct {
	CandidateID int64
	TimedOut    bool
	Stderr      string
	Err         error
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("encode candidate %d", e.CandidateID)
	if e.TimedOut {
		msg += " timed out"
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", msg, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Job is one candidate render inside a run directory.
type Job struct {
	RunDir    string
	Source    types.SourceVideo
	Candidate types.Candidate
}

type Result struct {
	ClipPath     string
	SubtitlePath string
	Crop         types.CropWindow
	Words        int
	// Degraded is set when captions fell back to the placeholder cue.
	Degraded bool
	Elapsed  time.Duration
}

// Executor renders candidates. It is safe for concurrent use on different
// candidates.
type Executor struct {
	Media         ports.MediaTool
	Captions      *transcribe.Engine
	Tracker       *tracking.Tracker
	Style         subtitles.Style
	EncodeTimeout time.Duration
	CRF           int
	Preset        string
	Logger        *slog.Logger
}

// Render runs trim, transcription, caption compile, tracking, crop and the
// final encode for one candidate. Temp files are removed on success and kept
// on failure.
func (e *Executor) Render(ctx context.Context, job Job) (Result, error) {
	started := time.Now()
	c := job.Candidate
	ctx = logging.WithCandidateID(ctx, c.ID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(e.Logger, "render"))

	if err := checkSegment(c, job.Source); err != nil {
		return Result{}, err
	}
	layout := NewLayout(job.RunDir)
	if err := layout.Ensure(); err != nil {
		return Result{}, err
	}

	unlock, err := acquire(layout.RenderLockPath(c.ID), c.ID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	segPath := layout.SegmentPath(c.ID)
	wavPath := layout.AudioPath(c.ID)
	subPath := layout.SubtitlePath(c.ID)
	clipPath := layout.ClipPath(c.ID)
	duration := c.Segment.Duration()

	logger.Info("render started",
		logging.String("segment", c.Segment.String()),
		logging.String("source", job.Source.Path),
	)

	if err := e.Media.Trim(ctx, job.Source.Path, c.Segment, segPath); err != nil {
		return Result{}, fmt.Errorf("trim segment: %w", err)
	}
	words, degraded, err := e.captions(ctx, logger, segPath, wavPath, duration)
	if err != nil {
		return Result{}, err
	}
	words = clampWords(words, duration)
	if len(words) == 0 {
		words = subtitles.Placeholder(duration, "")
		degraded = true
	}
	if err := subtitles.WriteFile(subPath, words); err != nil {
		return Result{}, fmt.Errorf("compile subtitles: %w", err)
	}

	info, err := e.Media.Probe(ctx, segPath)
	if err != nil {
		return Result{}, fmt.Errorf("probe segment: %w", err)
	}
	center, err := e.Tracker.Center(ctx, segPath, nil, info)
	if err != nil {
		return Result{}, fmt.Errorf("track faces: %w", err)
	}
	crop, err := geometry.Crop(info.Width, info.Height, center)
	if err != nil {
		return Result{}, err
	}

	if err := e.encode(ctx, c.ID, ports.EncodeSpec{
		Input:        segPath,
		Output:       clipPath,
		Crop:         crop,
		SubtitlePath: subPath,
		ForceStyle:   e.Style.ForceStyle(),
		CRF:          e.CRF,
		Preset:       e.Preset,
	}); err != nil {
		logger.Error("encode failed, keeping work files",
			logging.String("work_dir", layout.WorkDir()),
			logging.Error(err),
		)
		return Result{}, err
	}

	removeAll(logger, segPath, wavPath)
	res := Result{
		ClipPath:     clipPath,
		SubtitlePath: subPath,
		Crop:         crop,
		Words:        len(words),
		Degraded:     degraded,
		Elapsed:      time.Since(started),
	}
	logger.Info("render finished",
		logging.String("clip", clipPath),
		logging.Int("crop_x", crop.X),
		logging.Int("words", res.Words),
		logging.Bool("placeholder_captions", degraded),
		logging.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// captions transcribes the segment audio. A segment whose audio cannot be
// extracted, for example one with no audio stream, gets the placeholder cue.
func (e *Executor) captions(ctx context.Context, logger *slog.Logger, segPath, wavPath string, duration float64) ([]types.TimedWord, bool, error) {
	if err := e.Media.ExtractAudio(ctx, segPath, wavPath); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		logger.Warn("audio extraction failed, using placeholder caption",
			logging.String("segment", segPath),
			logging.Error(err),
		)
		return e.Captions.Placeholder(duration), true, nil
	}
	words, degraded, err := e.Captions.TranscribeOrPlaceholder(ctx, wavPath, duration)
	if err != nil {
		return nil, false, fmt.Errorf("transcribe segment: %w", err)
	}
	return words, degraded, nil
}

func (e *Executor) encode(ctx context.Context, id int64, spec ports.EncodeSpec) error {
	timeout := e.EncodeTimeout
	if timeout <= 0 {
		timeout = DefaultEncodeTimeout
	}
	encodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := e.Media.Encode(encodeCtx, spec)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	encErr := &EncodeError{
		CandidateID: id,
		TimedOut:    errors.Is(encodeCtx.Err(), context.DeadlineExceeded),
		Err:         err,
	}
	var withStderr interface{ Stderr() string }
	if errors.As(err, &withStderr) {
		encErr.Stderr = withStderr.Stderr()
	}
	return encErr
}

// checkSegment refuses segments the source cannot satisfy before any file
// is touched.
func checkSegment(c types.Candidate, src types.SourceVideo) error {
	if src.Path == "" {
		return fmt.Errorf("candidate %d: source path is empty", c.ID)
	}
	if _, err := os.Stat(src.Path); err != nil {
		return fmt.Errorf("candidate %d: source: %w", c.ID, err)
	}
	if !c.Segment.Valid() {
		return fmt.Errorf("candidate %d: invalid segment %s", c.ID, c.Segment)
	}
	if src.DurationSec > 0 && c.Segment.End > src.DurationSec+0.001 {
		return fmt.Errorf("candidate %d: segment %s ends after source (%.3fs)", c.ID, c.Segment, src.DurationSec)
	}
	return nil
}

func acquire(path string, id int64) (func(), error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("candidate %d: %w", id, ErrRenderInProgress)
	}
	return func() { _ = lock.Unlock() }, nil
}

// clampWords keeps captions inside [0, duration).
func clampWords(words []types.TimedWord, duration float64) []types.TimedWord {
	out := make([]types.TimedWord, 0, len(words))
	for _, w := range words {
		if w.Start >= duration || w.End <= 0 {
			continue
		}
		w.Start = max(w.Start, 0)
		w.End = min(w.End, duration)
		if w.End-w.Start < 0.002 {
			continue
		}
		out = append(out, w)
	}
	return out
}

func removeAll(logger *slog.Logger, paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cleanup failed", logging.String("path", p), logging.Error(err))
		}
	}
}
