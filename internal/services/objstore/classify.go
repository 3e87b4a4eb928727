package objstore

import (
	"context"
	"errors"
	"net"

	"github.com/minio/minio-go/v7"

	"github.com/momentumsubash/ytd/internal/services"
)

// classifyStorageErr maps storage SDK failures to service error kinds.
// Cancellation passes through untouched so callers can tell an aborted run
// from a failed one.
func classifyStorageErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "upload", operation, "storage call timed out", err)
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey":
		return services.Wrap(services.ErrNotFound, "upload", operation, "object or bucket not found", err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return services.Wrap(services.ErrForbidden, "upload", operation, "storage credentials rejected", err)
	case "SlowDown", "TooManyRequests":
		return services.Wrap(services.ErrRateLimited, "upload", operation, "storage endpoint throttled the request", err)
	}
	if resp.StatusCode >= 500 {
		return services.Wrap(services.ErrTransient, "upload", operation, "storage endpoint failed", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return services.Wrap(services.ErrTimeout, "upload", operation, "storage call timed out", err)
		}
		return services.Wrap(services.ErrTransient, "upload", operation, "network failure reaching storage", err)
	}

	return services.Wrap(services.ErrTransient, "upload", operation, "storage request failed", err)
}
