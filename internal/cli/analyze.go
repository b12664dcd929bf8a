package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/usecase"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var title string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <file-or-url>",
		Short: "Create a run and pick clip candidates from a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *pipeline.App) error {
				run, err := app.Usecase.Submit(cmd.Context(), args[0], title)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Run %s created\n", run.ID)
				res, err := app.Usecase.Analyze(cmd.Context(), run.ID)
				if err != nil {
					return fmt.Errorf("analyze run %s: %w", run.ID, err)
				}
				return printAnalysis(cmd, res, asJSON)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title for the run (overrides the detected one)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newReanalyzeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reanalyze <run-id>",
		Short: "Retry analysis of a failed run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *pipeline.App) error {
				res, err := app.Usecase.Reanalyze(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("reanalyze run %s: %w", args[0], err)
				}
				return printAnalysis(cmd, res, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printAnalysis(cmd *cobra.Command, res usecase.AnalyzeResult, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, map[string]any{
			"run":        res.Run,
			"candidates": res.Candidates,
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s, %d candidate(s)\n", res.Run.ID, res.Run.Status, res.Run.CandidatesCount)
	if res.Run.Reason != "" {
		fmt.Fprintf(out, "Note: %s\n", res.Run.Reason)
	}
	if len(res.Candidates) > 0 {
		fmt.Fprintln(out, candidatesTable(res.Candidates))
		fmt.Fprintf(out, "Render them with: reelcut render --run %s\n", res.Run.ID)
	}
	return nil
}
