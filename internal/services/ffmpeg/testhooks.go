package ffmpeg

import (
	"context"

	"github.com/momentumsubash/ytd/internal/media/ffprobe"
)

// probeMedia is the ffprobe function used by this package. It is a
// package-level variable so tests can override it.
var probeMedia = ffprobe.Inspect

// SetProbeForTests overrides the ffprobe runner during tests.
func SetProbeForTests(fn func(context.Context, string, string) (ffprobe.Result, error)) func() {
	previous := probeMedia
	probeMedia = fn
	return func() {
		probeMedia = previous
	}
}
