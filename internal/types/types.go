package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SourceVideo describes a probed input file. It is immutable once probed.
type SourceVideo struct {
	Path        string  `json:"path"`
	DurationSec float64 `json:"duration_sec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps,omitempty"`
}

// Segment is a half-open time range [Start, End) in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Segment) Duration() float64 { return s.End - s.Start }

func (s Segment) Valid() bool {
	return s.Start >= 0 && s.End > s.Start && !math.IsInf(s.End, 0)
}

func (s Segment) String() string {
	return fmt.Sprintf("[%.3fs, %.3fs)", s.Start, s.End)
}

// Overlaps reports whether two segments share any time.
func (s Segment) Overlaps(o Segment) bool {
	return s.Start < o.End && o.Start < s.End
}

// TimedWord is a word or short phrase with timing relative to the media it
// was transcribed from.
type TimedWord struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// CropWindow is a full-height 9:16 window inside a source frame.
type CropWindow struct {
	X      int `json:"x"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type RunStatus string

const (
	RunAnalyzing         RunStatus = "analyzing"
	RunAnalysisCompleted RunStatus = "analysis_completed"
	RunFailed            RunStatus = "failed"
)

type CandidateStatus string

const (
	CandidatePending  CandidateStatus = "pending"
	CandidateRendered CandidateStatus = "rendered"
	CandidateFailed   CandidateStatus = "failed"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransitionRun reports whether a run may move from one status to another.
// A failed run can be re-analyzed; a completed analysis is final.
func CanTransitionRun(from, to RunStatus) bool {
	switch from {
	case RunAnalyzing:
		return to == RunAnalysisCompleted || to == RunFailed
	case RunFailed:
		return to == RunAnalyzing
	default:
		return false
	}
}

// CanTransitionCandidate reports whether a candidate may move between
// statuses. Rendered is terminal apart from re-rendering.
func CanTransitionCandidate(from, to CandidateStatus) bool {
	switch from {
	case CandidatePending:
		return to == CandidateRendered || to == CandidateFailed
	case CandidateFailed:
		return to == CandidateRendered || to == CandidateFailed
	case CandidateRendered:
		return to == CandidateRendered
	default:
		return false
	}
}

// Run is one unit of work: a source video and its analysis outcome.
type Run struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Title           string    `json:"title"`
	SourcePath      string    `json:"source_path"`
	DurationSec     float64   `json:"duration_sec"`
	Status          RunStatus `json:"status"`
	Progress        string    `json:"progress"`
	Reason          string    `json:"reason,omitempty"`
	CandidatesCount int       `json:"candidates_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Candidate is a proposed clip persisted between analysis and render.
type Candidate struct {
	ID           int64           `json:"id"`
	RunID        string          `json:"run_id"`
	Segment      Segment         `json:"segment"`
	Title        string          `json:"title"`
	Rationale    string          `json:"rationale"`
	Score        float64         `json:"score"`
	Status       CandidateStatus `json:"status"`
	Rendered     bool            `json:"rendered"`
	ClipPath     string          `json:"clip_path,omitempty"`
	SubtitlePath string          `json:"subtitle_path,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	DraftPath    string          `json:"draft_path,omitempty"`
	DraftWords   []TimedWord     `json:"draft_words,omitempty"`
	DraftError   string          `json:"draft_error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Proposal is a candidate as returned by the selector before it is stored.
type Proposal struct {
	Segment   Segment `json:"segment"`
	Title     string  `json:"title"`
	Rationale string  `json:"rationale"`
	Score     float64 `json:"score"`
}
