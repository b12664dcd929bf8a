package ports

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/forPelevin/reelcut/internal/types"
)

// MediaTool wraps the external media toolkit (ffmpeg/ffprobe).
type MediaTool interface {
	Probe(ctx context.Context, path string) (types.SourceVideo, error)
	// Trim copies [seg.Start, seg.End) into out without re-encoding.
	Trim(ctx context.Context, in string, seg types.Segment, out string) error
	// ExtractAudio writes mono 16 kHz PCM WAV.
	ExtractAudio(ctx context.Context, in, outWav string) error
	Encode(ctx context.Context, spec EncodeSpec) error
	FrameGrabber
}

// EncodeSpec describes one vertical encode of an already trimmed file.
type EncodeSpec struct {
	Input  string
	Output string
	Crop   types.CropWindow
	// SubtitlePath is burned in when set, styled with ForceStyle.
	SubtitlePath string
	ForceStyle   string
	// Silent drops the audio stream (editor drafts).
	Silent bool
	CRF    int
	Preset string
}

// FrameGrabber decodes a single frame at a timestamp in seconds.
type FrameGrabber interface {
	Frame(ctx context.Context, path string, at float64) (image.Image, error)
}

// Face is a detection in image pixel coordinates.
type Face struct {
	X, Y          float64
	Width, Height float64
	Score         float64
}

func (f Face) Area() float64 { return f.Width * f.Height }

func (f Face) CenterX() float64 { return f.X + f.Width/2 }

type FaceDetector interface {
	Detect(img image.Image) ([]Face, error)
}

// Transcriber turns a media file into timed words relative to its start.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) ([]types.TimedWord, error)
}

// ProposalRequest is what a proposer needs to suggest clip segments.
type ProposalRequest struct {
	VideoPath   string
	DurationSec float64
	Prompt      string
	// Transcript is set for proposers that cannot watch the video.
	Transcript []types.TimedWord
}

// SegmentProposer returns the raw structured answer of an AI model.
type SegmentProposer interface {
	Propose(ctx context.Context, req ProposalRequest) (string, error)
}

// NeedsTranscript is implemented by proposers that work from text only.
type NeedsTranscript interface {
	NeedsTranscript() bool
}

type FetchResult struct {
	Path  string
	Title string
}

// Fetcher downloads remote sources (URLs) into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) (FetchResult, error)
}

// JobRef identifies what a progress update is about.
type JobRef struct {
	RunID       string
	CandidateID int64
}

type Outcome struct {
	Status string
	Detail string
	Err    error
}

// Progress receives coarse milestones and final results.
type Progress interface {
	Report(ctx context.Context, job JobRef, label string)
	Result(ctx context.Context, job JobRef, outcome Outcome)
}

// Store is the durable run/candidate state. Every mutation is one atomic command.
type Store interface {
	CreateRun(ctx context.Context, run types.Run) error
	GetRun(ctx context.Context, id string) (types.Run, error)
	ListRuns(ctx context.Context, limit int) ([]types.Run, error)
	BeginAnalysis(ctx context.Context, id string) error
	SetSource(ctx context.Context, id string, src types.SourceVideo, title string) error
	SetProgress(ctx context.Context, id, label string) error
	CompleteAnalysis(ctx context.Context, id string, proposals []types.Proposal, note string) ([]types.Candidate, error)
	FailRun(ctx context.Context, id, reason string) error

	GetCandidate(ctx context.Context, id int64) (types.Candidate, error)
	ListCandidates(ctx context.Context, runID string) ([]types.Candidate, error)
	MarkCandidateRendered(ctx context.Context, id int64, clipPath, subtitlePath string) error
	MarkCandidateFailed(ctx context.Context, id int64, reason string) error
	AttachDraft(ctx context.Context, id int64, draftPath string, words []types.TimedWord) error
	RecordDraftFailure(ctx context.Context, id int64, reason string) error
}

// RateLimitError is returned by AI adapters when the provider throttles us.
type RateLimitError struct {
	Provider string
	Wait     time.Duration
	Body     string
}

func (e *RateLimitError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("%s rate limited (retry after %s): %s", e.Provider, e.Wait, e.Body)
	}
	return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Body)
}

func (e *RateLimitError) RetryAfter() time.Duration { return e.Wait }

func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
