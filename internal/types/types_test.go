package types

import (
	"math"
	"testing"
)

func TestSegmentValid(t *testing.T) {
	tests := []struct {
		name string
		seg  Segment
		want bool
	}{
		{"ok", Segment{Start: 1, End: 2}, true},
		{"zero start", Segment{Start: 0, End: 0.5}, true},
		{"empty", Segment{Start: 2, End: 2}, false},
		{"reversed", Segment{Start: 3, End: 2}, false},
		{"negative", Segment{Start: -1, End: 2}, false},
		{"nan", Segment{Start: math.NaN(), End: 2}, false},
		{"inf", Segment{Start: 0, End: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seg.Valid(); got != tt.want {
				t.Fatalf("Valid(%v) = %v, want %v", tt.seg, got, tt.want)
			}
		})
	}
}

func TestSegmentOverlaps(t *testing.T) {
	a := Segment{Start: 10, End: 40}
	if !a.Overlaps(Segment{Start: 30, End: 60}) {
		t.Fatalf("expected overlap")
	}
	if a.Overlaps(Segment{Start: 40, End: 60}) {
		t.Fatalf("half-open segments touching at 40 must not overlap")
	}
}

func TestRunTransitions(t *testing.T) {
	tests := []struct {
		from, to RunStatus
		want     bool
	}{
		{RunAnalyzing, RunAnalysisCompleted, true},
		{RunAnalyzing, RunFailed, true},
		{RunFailed, RunAnalyzing, true},
		{RunAnalysisCompleted, RunAnalyzing, false},
		{RunAnalysisCompleted, RunFailed, false},
		{RunFailed, RunAnalysisCompleted, false},
	}
	for _, tt := range tests {
		if got := CanTransitionRun(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransitionRun(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCandidateRenderedNeverReverts(t *testing.T) {
	for _, to := range []CandidateStatus{CandidatePending, CandidateFailed} {
		if CanTransitionCandidate(CandidateRendered, to) {
			t.Fatalf("rendered candidate must not move to %s", to)
		}
	}
	if !CanTransitionCandidate(CandidateRendered, CandidateRendered) {
		t.Fatalf("expected re-render to be allowed")
	}
	if !CanTransitionCandidate(CandidateFailed, CandidateRendered) {
		t.Fatalf("expected failed render to be retriable")
	}
}
