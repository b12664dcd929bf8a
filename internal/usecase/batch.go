package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/reelcut/internal/types"
)

// renderBatch runs fn for every candidate with at most limit in flight.
// Errors are collected per index; the group itself never fails, so one
// candidate's error does not cancel the others.
func renderBatch(
	ctx context.Context,
	cands []types.Candidate,
	limit int,
	fn func(context.Context, types.Candidate) (types.Candidate, error),
) ([]types.Candidate, []error) {
	results := make([]types.Candidate, len(cands))
	errs := make([]error, len(cands))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, c := range cands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = fn(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}
