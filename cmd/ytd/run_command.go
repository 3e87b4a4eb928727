package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentumsubash/ytd/internal/logging"
	"github.com/momentumsubash/ytd/internal/pipeline"
	"github.com/momentumsubash/ytd/internal/progress"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var startIndex int

	cmd := &cobra.Command{
		Use:   "run [playlist-url...]",
		Short: "Process playlists through download, merge, and upload",
		Long: `Run the pipeline over the given playlist URLs, or over the playlists
configured in the config file when none are given. Units that already
completed a stage are skipped, so interrupted runs can simply be rerun.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("start") {
				if startIndex < 1 {
					return fmt.Errorf("start entry must be 1 or higher, got %d", startIndex)
				}
				cfg.Pipeline.StartIndex = startIndex
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			orch, err := pipeline.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := orch.Close(); closeErr != nil {
					logger.Warn("close pipeline", logging.Error(closeErr))
				}
			}()

			summary, runErr := orch.Process(signalCtx, args)
			renderRunSummary(cmd, summary)
			return runErr
		},
	}

	cmd.Flags().IntVar(&startIndex, "start", 0, "Process playlists starting at this entry (1-based)")
	return cmd
}

func renderRunSummary(cmd *cobra.Command, summary pipeline.Summary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if len(summary.Playlists) == 0 && len(summary.Stages) == 0 {
		return
	}

	fmt.Fprintf(out, "Run %s finished in %s\n", summary.RunID, formatElapsed(summary.Elapsed))

	if len(summary.Stages) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Stages", colorize) {
			fmt.Fprintln(out, line)
		}
		rows := make([][]string, 0, len(summary.Stages))
		for _, stage := range progress.Stages() {
			counts, ok := summary.Stages[stage]
			if !ok {
				continue
			}
			rows = append(rows, []string{
				displayLabel(string(stage)),
				fmt.Sprintf("%d", counts.Successful),
				fmt.Sprintf("%d", counts.Skipped),
				fmt.Sprintf("%d", counts.Failed),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Stage", "Successful", "Skipped", "Failed"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
		))
	}

	if len(summary.Playlists) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Playlists", colorize) {
			fmt.Fprintln(out, line)
		}
		rows := make([][]string, 0, len(summary.Playlists))
		for _, report := range summary.Playlists {
			rows = append(rows, []string{
				playlistDisplayName(report),
				fmt.Sprintf("%d", report.Units),
				fmt.Sprintf("%d", report.Outcomes[progress.StatusCompleted]),
				fmt.Sprintf("%d", report.Outcomes[progress.StatusSkipped]),
				fmt.Sprintf("%d", report.Outcomes[progress.StatusFailed]),
				playlistStatusLabel(report),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Playlist", "Units", "Completed", "Skipped", "Failed", "Status"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	}

	completed, skipped, failed := summary.OutcomeTotals()
	totals := fmt.Sprintf("Totals: %d completed, %d skipped, %d failed", completed, skipped, failed)
	if summary.BytesUploaded > 0 {
		totals += fmt.Sprintf(", %s uploaded", humanBytes(summary.BytesUploaded))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, totals)

	for _, report := range summary.Playlists {
		if report.Err != nil {
			fmt.Fprintf(out, "Playlist %s: %v\n", playlistDisplayName(report), report.Err)
		}
	}
}

func playlistDisplayName(report pipeline.PlaylistReport) string {
	if title := strings.TrimSpace(report.Title); title != "" {
		return title
	}
	if report.ID != "" {
		return report.ID
	}
	return report.URL
}

func playlistStatusLabel(report pipeline.PlaylistReport) string {
	switch {
	case report.Err != nil:
		return "Error"
	case report.Completed:
		return "Completed"
	default:
		return "Partial"
	}
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
