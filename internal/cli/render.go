package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/usecase"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "render [candidate-id...]",
		Short: "Render candidates into vertical clips with burned-in captions",
		Example: "  reelcut render 12 13\n" +
			"  reelcut render --run 3f2c... --concurrency 2",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (runID == "") == (len(args) == 0) {
				return errors.New("pass candidate ids or --run, not both")
			}
			ids, err := parseCandidateIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(app *pipeline.App) error {
				if runID != "" {
					n := concurrency
					if n <= 0 {
						n = app.Config.Render.Concurrency
					}
					summary, err := app.Usecase.RenderAll(cmd.Context(), runID, n)
					printRenderSummary(cmd, summary)
					return err
				}
				return renderEach(cmd, app.Usecase, ids)
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Render every pending candidate of this run")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel renders for --run (default from config)")
	return cmd
}

func renderEach(cmd *cobra.Command, uc *usecase.Usecase, ids []int64) error {
	summary := usecase.RenderSummary{Failed: map[int64]error{}}
	for _, id := range ids {
		c, err := uc.Render(cmd.Context(), id)
		if err != nil {
			summary.Failed[id] = err
			if cmd.Context().Err() != nil {
				break
			}
			continue
		}
		summary.Rendered = append(summary.Rendered, c)
	}
	printRenderSummary(cmd, summary)
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d of %d renders failed", len(summary.Failed), len(ids))
	}
	return nil
}

func printRenderSummary(cmd *cobra.Command, s usecase.RenderSummary) {
	out := cmd.OutOrStdout()
	if len(s.Rendered) > 0 {
		fmt.Fprintln(out, candidatesTable(s.Rendered))
	}
	if s.Skipped > 0 {
		fmt.Fprintf(out, "Skipped %d already rendered candidate(s)\n", s.Skipped)
	}
	ids := make([]int64, 0, len(s.Failed))
	for id := range s.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(cmd.ErrOrStderr(), "candidate %d: %v\n", id, s.Failed[id])
	}
}

func newPrepareCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "prepare <candidate-id>",
		Short: "Build an editable draft (silent video and word timings)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseCandidateIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(app *pipeline.App) error {
				draft, err := app.Usecase.Prepare(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, draft)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Draft video: %s\n", draft.VideoPath)
				fmt.Fprintf(out, "Word timings: %s (%d words)\n", draft.WordsPath, len(draft.Words))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the draft as JSON")
	return cmd
}

func parseCandidateIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid candidate id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
