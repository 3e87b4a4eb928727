package ffmpeg

import (
	"context"
	"os/exec"
)

// Executor abstracts ffmpeg subprocess execution so tests can substitute a
// fake. Run returns the combined stdout and stderr output.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
