package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/deps"
	"github.com/momentumsubash/ytd/internal/services/objstore"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStorage verifies the object storage endpoint is reachable and the
// configured bucket exists. It uses a 10-second timeout and never mutates
// the store.
func CheckStorage(ctx context.Context, cfg *config.Config) Result {
	const name = "Object storage"

	client, err := objstore.NewMinio(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Health(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeStorageError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %q reachable", client.Bucket())}
}

// CheckSystemDeps evaluates the external binaries the pipeline executes.
// Both the run command and the CLI status command use this to avoid
// duplicating the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     deps.ResolveBinary(cfg.Extractor.Binary, "yt-dlp"),
			Description: "Required for playlist listing and stream downloads",
		},
		{
			Name:        "FFmpeg",
			Command:     deps.ResolveBinary(cfg.Encoder.FFmpegBinary, "ffmpeg"),
			Description: "Required for merging video and audio streams",
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveBinary(cfg.Encoder.FFprobeBinary, "ffprobe"),
			Description: "Verifies merged output and reads durations",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeStorageError produces a human-readable summary for storage health
// check failures.
func summarizeStorageError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (storage endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (storage endpoint unreachable)"
	}
	return err.Error()
}
