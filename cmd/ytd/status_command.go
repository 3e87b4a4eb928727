package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency, and preflight health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			printConfigSection(out, ctx, cfg, colorize)
			fmt.Fprintln(out)
			printDependencySection(out, cfg, colorize)
			fmt.Fprintln(out)
			printPreflightSection(cmd, out, cfg, colorize)
			return nil
		},
	}
}

func printConfigSection(out io.Writer, ctx *commandContext, cfg *config.Config, colorize bool) {
	for _, line := range renderSectionHeader("Configuration", colorize) {
		fmt.Fprintln(out, line)
	}

	configKind := statusOK
	configDetail := ctx.configPath
	if !ctx.configFound {
		configKind = statusWarn
		configDetail = fmt.Sprintf("not found, using defaults (expected at %s)", ctx.configPath)
	}
	fmt.Fprintln(out, renderStatusLine("Config file", configKind, configDetail, colorize))
	fmt.Fprintln(out, renderStatusLine("Playlists", statusInfo, fmt.Sprintf("%d configured", len(cfg.Pipeline.Playlists)), colorize))
	fmt.Fprintln(out, renderStatusLine("Staging directory", statusInfo, cfg.Paths.StagingDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Merged directory", statusInfo, cfg.Paths.MergedDir, colorize))
	fmt.Fprintln(out, renderStatusLine("State directory", statusInfo, cfg.Paths.StateDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Source cleanup", statusInfo, cfg.Pipeline.SourceCleanup, colorize))
	fmt.Fprintln(out, renderStatusLine("Fuzzy matching", statusInfo, yesNo(cfg.Matching.Fuzzy), colorize))
	fmt.Fprintln(out, renderStatusLine("Stream copy", statusInfo, yesNo(cfg.Encoder.StreamCopy), colorize))

	if cfg.Storage.Enabled {
		target := strings.TrimSpace(cfg.Storage.Endpoint)
		if bucket := strings.TrimSpace(cfg.Storage.Bucket); bucket != "" {
			target = fmt.Sprintf("%s/%s", target, bucket)
		}
		fmt.Fprintln(out, renderStatusLine("Storage", statusInfo, target, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Storage", statusWarn, "Disabled (merged files stay local)", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Logging", statusInfo, fmt.Sprintf("%s, %s", cfg.Logging.Level, cfg.Logging.Format), colorize))
}

func printDependencySection(out io.Writer, cfg *config.Config, colorize bool) {
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		kind := statusOK
		detail := status.Command
		if !status.Available {
			detail = status.Detail
			if status.Optional {
				kind = statusWarn
			} else {
				kind = statusError
			}
		}
		fmt.Fprintln(out, renderStatusLine(status.Name, kind, detail, colorize))
	}
}

func printPreflightSection(cmd *cobra.Command, out io.Writer, cfg *config.Config, colorize bool) {
	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	results := preflight.RunAll(cmd.Context(), cfg)
	if len(results) == 0 {
		fmt.Fprintln(out, "No checks enabled")
		return
	}
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
}
