package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/momentumsubash/ytd/internal/logging"
	"github.com/momentumsubash/ytd/internal/progress"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show recorded per-stem stage outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store := progress.NewStore(cfg.ProgressStatePath(), logging.NewNop())
			records := store.List()
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "No progress recorded at %s\n", store.Path())
				return nil
			}

			colorize := shouldColorize(out)

			counts := make(map[progress.Stage]map[progress.Status]int)
			for _, rec := range records {
				if counts[rec.Stage] == nil {
					counts[rec.Stage] = make(map[progress.Status]int)
				}
				counts[rec.Stage][rec.Status]++
			}

			for _, line := range renderSectionHeader("Stages", colorize) {
				fmt.Fprintln(out, line)
			}
			stageRows := make([][]string, 0, len(counts))
			for _, stage := range progress.Stages() {
				byStatus, ok := counts[stage]
				if !ok {
					continue
				}
				stageRows = append(stageRows, []string{
					displayLabel(string(stage)),
					fmt.Sprintf("%d", byStatus[progress.StatusCompleted]),
					fmt.Sprintf("%d", byStatus[progress.StatusSkipped]),
					fmt.Sprintf("%d", byStatus[progress.StatusFailed]),
					fmt.Sprintf("%d", byStatus[progress.StatusPending]),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Completed", "Skipped", "Failed", "Pending"},
				stageRows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Units", colorize) {
				fmt.Fprintln(out, line)
			}
			unitRows := make([][]string, 0, len(records))
			for _, rec := range records {
				size := "-"
				if rec.SizeBytes > 0 {
					size = humanBytes(rec.SizeBytes)
				}
				unitRows = append(unitRows, []string{
					rec.Stem,
					displayLabel(string(rec.Stage)),
					displayLabel(string(rec.Status)),
					size,
					formatDisplayTime(rec.UpdatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stem", "Stage", "Status", "Size", "Updated"},
				unitRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
