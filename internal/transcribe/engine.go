// Package transcribe produces validated word timings for a media file.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/retry"
	"github.com/forPelevin/reelcut/internal/types"
)

var (
	ErrUnordered = errors.New("transcript is not time-ordered")
	ErrEmpty     = errors.New("transcript is empty")
)

// DefaultPlaceholder is shown when no transcription could be produced.
const DefaultPlaceholder = "..."

// Engine wraps a transcription strategy with retries and output validation.
type Engine struct {
	strategy    ports.Transcriber
	policy      retry.Policy
	placeholder string
	logger      *slog.Logger
}

func New(strategy ports.Transcriber, policy retry.Policy, placeholder string, logger *slog.Logger) *Engine {
	if policy.Retryable == nil {
		policy.Retryable = ports.IsRateLimited
	}
	if strings.TrimSpace(placeholder) == "" {
		placeholder = DefaultPlaceholder
	}
	return &Engine{
		strategy:    strategy,
		policy:      policy,
		placeholder: placeholder,
		logger:      logging.NewComponentLogger(logger, "transcribe"),
	}
}

// Transcribe returns time-ordered, non-overlapping words for mediaPath.
func (e *Engine) Transcribe(ctx context.Context, mediaPath string) ([]types.TimedWord, error) {
	logger := logging.WithContext(ctx, e.logger)
	policy := e.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("transcription throttled, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	started := time.Now()
	words, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) ([]types.TimedWord, error) {
		return e.strategy.Transcribe(ctx, mediaPath)
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", mediaPath, err)
	}
	words, err = Normalize(words)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", mediaPath, err)
	}
	logger.Info("transcription complete",
		logging.Int("words", len(words)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return words, nil
}

// TranscribeOrPlaceholder never fails for provider errors: after retries it
// returns a single caption spanning [0, durationSec) and degraded=true.
// Context cancellation is still reported.
func (e *Engine) TranscribeOrPlaceholder(ctx context.Context, mediaPath string, durationSec float64) ([]types.TimedWord, bool, error) {
	words, err := e.Transcribe(ctx, mediaPath)
	if err == nil && len(words) > 0 {
		return words, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, ctxErr
	}
	if err == nil {
		err = ErrEmpty
	}
	logging.WithContext(ctx, e.logger).Warn("transcription unavailable, using placeholder caption",
		logging.String("media", mediaPath),
		logging.Error(err),
	)
	return e.Placeholder(durationSec), true, nil
}

// Placeholder is the single caption spanning [0, durationSec).
func (e *Engine) Placeholder(durationSec float64) []types.TimedWord {
	return []types.TimedWord{{Start: 0, End: durationSec, Text: e.placeholder}}
}

// Normalize trims and NFC-normalizes text, drops empty entries, and checks
// ordering. Starts must not decrease and every entry must end after it
// starts. An entry sharing its predecessor's start is merged into it, and an
// entry that runs into its successor is cut at the successor's start.
func Normalize(words []types.TimedWord) ([]types.TimedWord, error) {
	out := make([]types.TimedWord, 0, len(words))
	for _, w := range words {
		w.Text = norm.NFC.String(strings.Join(strings.Fields(w.Text), " "))
		if w.Text == "" {
			continue
		}
		if w.Start < 0 || w.End <= w.Start {
			return nil, fmt.Errorf("%w: entry %q has range [%.3f, %.3f)", ErrUnordered, w.Text, w.Start, w.End)
		}
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if w.Start < prev.Start {
				return nil, fmt.Errorf("%w: %q at %.3f does not follow %q at %.3f", ErrUnordered, w.Text, w.Start, prev.Text, prev.Start)
			}
			if w.Start == prev.Start {
				prev.Text += " " + w.Text
				prev.End = max(prev.End, w.End)
				continue
			}
			if prev.End > w.Start {
				prev.End = w.Start
			}
		}
		out = append(out, w)
	}
	return out, nil
}
