package preflight

import (
	"context"

	"github.com/momentumsubash/ytd/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Merged directory", cfg.Paths.MergedDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if cfg.Pipeline.SourceCleanup == config.SourceCleanupMove {
		results = append(results, CheckDirectoryAccess("Processed directory", cfg.Paths.ProcessedDir))
	}

	if cfg.Storage.Enabled {
		results = append(results, CheckStorage(ctx, cfg))
	}

	return results
}
