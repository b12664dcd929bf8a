// Package selector asks an AI proposer for viral segments and keeps the ones
// that satisfy the clip rules.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forPelevin/reelcut/internal/domain/highlights"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/retry"
	"github.com/forPelevin/reelcut/internal/types"
)

type Request struct {
	Video types.SourceVideo
	// Transcript is required when the proposer works from text only.
	Transcript []types.TimedWord
}

// Outcome is the result of one selection. Accepted may be empty; Note then
// explains why.
type Outcome struct {
	Target   int
	Proposed int
	Accepted []types.Proposal
	Rejected []highlights.Rejection
	Note     string
}

type Selector struct {
	Proposer ports.SegmentProposer
	Rules    highlights.Rules
	Retry    retry.Policy
	Logger   *slog.Logger
}

func New(proposer ports.SegmentProposer, rules highlights.Rules, policy retry.Policy, logger *slog.Logger) *Selector {
	if policy.Retryable == nil {
		policy.Retryable = ports.IsRateLimited
	}
	return &Selector{
		Proposer: proposer,
		Rules:    rules,
		Retry:    policy,
		Logger:   logging.NewComponentLogger(logger, "selector"),
	}
}

// NeedsTranscript reports whether Select expects Request.Transcript.
func (s *Selector) NeedsTranscript() bool {
	nt, ok := s.Proposer.(ports.NeedsTranscript)
	return ok && nt.NeedsTranscript()
}

func (s *Selector) Select(ctx context.Context, req Request) (Outcome, error) {
	if s.Proposer == nil {
		return Outcome{}, errors.New("selector: no proposer configured")
	}
	if err := s.Rules.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("selector rules: %w", err)
	}
	if req.Video.DurationSec <= 0 {
		return Outcome{}, fmt.Errorf("selector: unknown video duration for %s", req.Video.Path)
	}
	if s.NeedsTranscript() && len(req.Transcript) == 0 {
		return Outcome{Target: s.Rules.Target(req.Video.DurationSec), Note: "no speech found for transcript-based selection"}, nil
	}
	logger := logging.WithContext(ctx, s.logger())

	out := Outcome{Target: s.Rules.Target(req.Video.DurationSec)}
	preq := ports.ProposalRequest{
		VideoPath:   req.Video.Path,
		DurationSec: req.Video.DurationSec,
		Prompt:      s.Rules.Prompt(out.Target, req.Video.DurationSec),
		Transcript:  req.Transcript,
	}

	policy := s.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("proposer throttled, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	started := time.Now()
	content, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (string, error) {
		return s.Proposer.Propose(ctx, preq)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("propose segments: %w", err)
	}

	raw, err := highlights.DecodeProposals(content)
	if err != nil {
		logger.Warn("unparseable proposer answer", logging.Error(err))
		out.Note = "model answer could not be parsed"
		return out, nil
	}
	out.Proposed = len(raw)
	out.Accepted, out.Rejected = s.Rules.Filter(raw, req.Video.DurationSec)
	for _, r := range out.Rejected {
		logger.Debug("proposal rejected", logging.Int("index", r.Index), logging.String("reason", r.Reason))
	}
	if len(out.Accepted) == 0 {
		out.Note = fmt.Sprintf("none of %d proposals satisfied the clip rules", out.Proposed)
	}
	logger.Info("segments selected",
		logging.Int("target", out.Target),
		logging.Int("proposed", out.Proposed),
		logging.Int("accepted", len(out.Accepted)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return out, nil
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger == nil {
		return logging.NewNop()
	}
	return s.Logger
}
