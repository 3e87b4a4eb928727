package pipeline

import (
	"context"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/preflight"
)

// runPreflight is the preflight runner invoked before each run. It is a
// package-level variable so tests can override it.
var runPreflight = preflight.RunAll

// SetPreflightForTests overrides the preflight runner during tests.
func SetPreflightForTests(fn func(context.Context, *config.Config) []preflight.Result) func() {
	previous := runPreflight
	runPreflight = fn
	return func() {
		runPreflight = previous
	}
}
