package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/momentumsubash/ytd/internal/fileutil"
	"github.com/momentumsubash/ytd/internal/pairing"
	"github.com/momentumsubash/ytd/internal/pipeline"
)

func newPairCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Rescan the staging directory and show how files pair up",
		Long: `Run the video/audio matcher over the staging directory and print the
resulting pairs, one-sided units, and files that could not be matched.
Nothing is modified; this is a diagnostic view of what the merge stage
would work with.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			files, err := fileutil.ListFiles(cfg.Paths.StagingDir)
			if err != nil {
				return fmt.Errorf("scan staging directory: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintf(out, "Staging directory %s is empty\n", cfg.Paths.StagingDir)
				return nil
			}

			result := pairing.Match(files, pipeline.MatcherConfig(cfg))
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Pairs", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(result.Pairs) == 0 {
				fmt.Fprintln(out, "No pairs found")
			} else {
				rows := make([][]string, 0, len(result.Pairs))
				for _, unit := range result.Pairs {
					rows = append(rows, []string{
						unit.Stem,
						unit.Video,
						unit.Audio,
						unit.OutputName,
						matchLevelLabel(unit.MatchLevel),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Stem", "Video", "Audio", "Output", "Match"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
			}

			printOneSided(out, "Video only", result.VideoOnly, colorize)
			printOneSided(out, "Audio only", result.AudioOnly, colorize)

			if len(result.Unmatched) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Unmatched", colorize) {
					fmt.Fprintln(out, line)
				}
				rows := make([][]string, 0, len(result.Unmatched))
				for _, file := range result.Unmatched {
					rows = append(rows, []string{file.Name, file.Reason})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Reason"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				))
			}

			fmt.Fprintf(out, "\n%d files: %d pairs, %d video only, %d audio only, %d unmatched\n",
				len(files), len(result.Pairs), len(result.VideoOnly), len(result.AudioOnly), len(result.Unmatched))
			return nil
		},
	}
}

func printOneSided(out io.Writer, title string, units []pairing.Unit, colorize bool) {
	if len(units) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	for _, unit := range units {
		name := unit.Video
		if name == "" {
			name = unit.Audio
		}
		fmt.Fprintf(out, "%s%s (stem %q)\n", statusIndent, name, unit.Stem)
	}
}

func matchLevelLabel(level int) string {
	if level == 0 {
		return "exact"
	}
	return fmt.Sprintf("fuzzy(%d)", level)
}
