// Package progress records pipeline milestones in the log, the run record
// and, optionally, a human-facing line printer.
package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
)

// Labels reported by the orchestrator.
const (
	Downloading  = "downloading"
	Probing      = "probing"
	Transcribing = "transcribing"
	Analyzing    = "analyzing"
	Rendering    = "rendering"
	Preparing    = "preparing"
)

// Outcome statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusEmpty     = "no_candidates"
)

type progressWriter interface {
	SetProgress(ctx context.Context, runID, label string) error
}

// Reporter implements ports.Progress.
type Reporter struct {
	store  progressWriter
	logger *slog.Logger
	logf   func(format string, args ...any)
}

// New builds a reporter. store and logf may be nil.
func New(store progressWriter, logger *slog.Logger, logf func(format string, args ...any)) *Reporter {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Reporter{
		store:  store,
		logger: logging.NewComponentLogger(logger, "progress"),
		logf:   logf,
	}
}

func (r *Reporter) Report(ctx context.Context, job ports.JobRef, label string) {
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("milestone", logging.String("label", label))
	r.logf("%s%s", prefix(job), label)

	if r.store == nil || job.RunID == "" {
		return
	}
	stored := label
	if job.CandidateID != 0 {
		stored = fmt.Sprintf("%s candidate %d", label, job.CandidateID)
	}
	if err := r.store.SetProgress(ctx, job.RunID, stored); err != nil {
		logger.Warn("progress not persisted", logging.Error(err))
	}
}

func (r *Reporter) Result(ctx context.Context, job ports.JobRef, outcome ports.Outcome) {
	logger := logging.WithContext(ctx, r.logger)
	attrs := []logging.Attr{logging.String("status", outcome.Status)}
	if outcome.Detail != "" {
		attrs = append(attrs, logging.String("detail", outcome.Detail))
	}
	switch {
	case outcome.Err != nil:
		attrs = append(attrs, logging.Error(outcome.Err))
		logger.Error("job finished", logging.Args(attrs...)...)
		r.logf("%s%s: %v", prefix(job), outcome.Status, outcome.Err)
	case outcome.Status == StatusEmpty:
		logger.Warn("job finished", logging.Args(attrs...)...)
		r.logf("%s%s: %s", prefix(job), outcome.Status, outcome.Detail)
	default:
		logger.Info("job finished", logging.Args(attrs...)...)
		if outcome.Detail != "" {
			r.logf("%s%s: %s", prefix(job), outcome.Status, outcome.Detail)
		} else {
			r.logf("%s%s", prefix(job), outcome.Status)
		}
	}
}

func prefix(job ports.JobRef) string {
	if job.CandidateID != 0 {
		return fmt.Sprintf("[candidate %d] ", job.CandidateID)
	}
	if job.RunID != "" {
		return fmt.Sprintf("[run %s] ", shortID(job.RunID))
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ ports.Progress = (*Reporter)(nil)
