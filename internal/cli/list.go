package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/store"
	"github.com/forPelevin/reelcut/internal/types"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list [run-id]",
		Aliases: []string{"ls"},
		Short:   "List runs, or the candidates of one run",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *pipeline.App) error {
				if len(args) == 1 {
					return listCandidates(cmd, app.Store, args[0], asJSON)
				}
				runs, err := app.Store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs yet. Start one with: reelcut analyze <file-or-url>")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func listCandidates(cmd *cobra.Command, st *store.Store, runID string, asJSON bool) error {
	run, err := st.GetRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("run %s not found", runID)
		}
		return err
	}
	cands, err := st.ListCandidates(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, map[string]any{"run": run, "candidates": cands})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, runsTable([]types.Run{run}))
	if len(cands) == 0 {
		fmt.Fprintln(out, "No candidates")
		return nil
	}
	fmt.Fprintln(out, candidatesTable(cands))
	return nil
}
