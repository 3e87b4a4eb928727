package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentumsubash/ytd/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history journal: %w", err)
			}
			defer store.Close()

			if runID != "" {
				return renderRunDetail(cmd, store, runID)
			}
			return renderRecentRuns(cmd, store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show per-unit outcomes for one run ID")
	return cmd
}

func renderRecentRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded at %s\n", store.Path())
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt != nil {
			finished = formatDisplayTime(*run.FinishedAt)
		}
		rows = append(rows, []string{
			run.ID,
			formatDisplayTime(run.StartedAt),
			finished,
			fmt.Sprintf("%d", run.Playlists),
			fmt.Sprintf("%d", run.Completed),
			fmt.Sprintf("%d", run.Skipped),
			fmt.Sprintf("%d", run.Failed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "Finished", "Playlists", "Completed", "Skipped", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

func renderRunDetail(cmd *cobra.Command, store *history.Store, runID string) error {
	run, err := store.GetRun(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("look up run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("no run with id %q", runID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "%sStarted:   %s\n", statusIndent, formatDisplayTime(run.StartedAt))
	if run.Finished() {
		fmt.Fprintf(out, "%sFinished:  %s\n", statusIndent, formatDisplayTime(*run.FinishedAt))
	} else {
		fmt.Fprintf(out, "%sFinished:  interrupted or still running\n", statusIndent)
	}
	fmt.Fprintf(out, "%sPlaylists: %d\n", statusIndent, run.Playlists)
	fmt.Fprintf(out, "%sOutcomes:  %d completed, %d skipped, %d failed\n",
		statusIndent, run.Completed, run.Skipped, run.Failed)

	outcomes, err := store.RunOutcomes(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("list run outcomes: %w", err)
	}
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No unit outcomes recorded")
		return nil
	}

	fmt.Fprintln(out)
	rows := make([][]string, 0, len(outcomes))
	for _, rec := range outcomes {
		size := "-"
		if rec.Bytes > 0 {
			size = humanBytes(rec.Bytes)
		}
		rows = append(rows, []string{
			rec.Playlist,
			displayLabel(string(rec.Stage)),
			rec.Stem,
			displayLabel(string(rec.Status)),
			size,
			formatOutcomeDuration(rec.Duration),
			rec.Detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Playlist", "Stage", "Stem", "Status", "Size", "Took", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return nil
}

func formatOutcomeDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
