package objstore

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/services"
)

func testStorageConfig() config.Config {
	cfg := config.Default()
	cfg.Storage.Enabled = true
	cfg.Storage.Endpoint = "127.0.0.1:9000"
	cfg.Storage.AccessKey = "minioadmin"
	cfg.Storage.SecretKey = "minioadmin"
	cfg.Storage.Bucket = "media"
	return cfg
}

func TestNewMinioValidation(t *testing.T) {
	if _, err := NewMinio(nil); err == nil {
		t.Error("NewMinio should reject a nil config")
	}

	cfg := testStorageConfig()
	cfg.Storage.Endpoint = ""
	if _, err := NewMinio(&cfg); err == nil {
		t.Error("NewMinio should reject an empty endpoint")
	}

	cfg = testStorageConfig()
	cfg.Storage.Bucket = "  "
	if _, err := NewMinio(&cfg); err == nil {
		t.Error("NewMinio should reject an empty bucket")
	}

	cfg = testStorageConfig()
	client, err := NewMinio(&cfg)
	if err != nil {
		t.Fatalf("NewMinio failed: %v", err)
	}
	if client.Bucket() != "media" {
		t.Errorf("Bucket = %q", client.Bucket())
	}
}

func TestObjectKeyAppliesPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "PL123/talk.mp4", "PL123/talk.mp4"},
		{"archive", "PL123/talk.mp4", "archive/PL123/talk.mp4"},
		{"/archive/", "PL123/talk.mp4", "archive/PL123/talk.mp4"},
		{"archive", "/PL123/talk.mp4", "archive/PL123/talk.mp4"},
		{" nested/deep ", "talk.mp4", "nested/deep/talk.mp4"},
	}
	for _, tt := range tests {
		cfg := testStorageConfig()
		cfg.Storage.Prefix = tt.prefix
		client, err := NewMinio(&cfg)
		if err != nil {
			t.Fatalf("NewMinio failed: %v", err)
		}
		if got := client.ObjectKey(tt.key); got != tt.want {
			t.Errorf("ObjectKey(%q) with prefix %q = %q, want %q", tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestPutValidatesRequest(t *testing.T) {
	cfg := testStorageConfig()
	client, err := NewMinio(&cfg)
	if err != nil {
		t.Fatalf("NewMinio failed: %v", err)
	}

	if _, err := client.Put(context.Background(), PutRequest{FilePath: "/tmp/file.mp4"}); err == nil {
		t.Error("Put should reject an empty key")
	}
	if _, err := client.Put(context.Background(), PutRequest{Key: "talk.mp4"}); err == nil {
		t.Error("Put should reject an empty file path")
	}

	missing := filepath.Join(t.TempDir(), "absent.mp4")
	_, err = client.Put(context.Background(), PutRequest{Key: "talk.mp4", FilePath: missing})
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("err = %v, want not-found kind for a missing local file", err)
	}
	if services.Retryable(err) {
		t.Error("missing local file should not be retryable")
	}
}

func TestStatValidatesKey(t *testing.T) {
	cfg := testStorageConfig()
	client, err := NewMinio(&cfg)
	if err != nil {
		t.Fatalf("NewMinio failed: %v", err)
	}
	if _, err := client.Stat(context.Background(), "  "); err == nil {
		t.Error("Stat should reject an empty key")
	}
}

func TestClassifyStorageErr(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		marker    error
		retryable bool
	}{
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}, services.ErrNotFound, false},
		{"missing key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, services.ErrNotFound, false},
		{"bad credentials", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}, services.ErrForbidden, false},
		{"throttled", minio.ErrorResponse{Code: "SlowDown", StatusCode: 503}, services.ErrRateLimited, true},
		{"server error", minio.ErrorResponse{Code: "InternalError", StatusCode: 500}, services.ErrTransient, true},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "minio.local"}, services.ErrTransient, true},
		{"network timeout", &net.DNSError{Err: "lookup timed out", Name: "minio.local", IsTimeout: true}, services.ErrTimeout, true},
		{"deadline", context.DeadlineExceeded, services.ErrTimeout, true},
		{"unknown", errors.New("connection refused"), services.ErrTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyStorageErr("put object", tt.err)
			if !errors.Is(got, tt.marker) {
				t.Fatalf("classified = %v, want marker %v", got, tt.marker)
			}
			if services.Retryable(got) != tt.retryable {
				t.Errorf("Retryable = %v, want %v", services.Retryable(got), tt.retryable)
			}
		})
	}
}

func TestClassifyStorageErrPassesThroughCancellation(t *testing.T) {
	got := classifyStorageErr("put object", context.Canceled)
	if !errors.Is(got, context.Canceled) {
		t.Fatalf("classified = %v, want context.Canceled", got)
	}
	if services.Retryable(got) {
		t.Error("cancellation should not be retryable")
	}
}

func TestContentTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"talk.mp4", "video/mp4"},
		{"talk.MKV", "video/x-matroska"},
		{"talk.webm", "video/webm"},
		{"talk.m4a", "audio/mp4"},
		{"talk.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentTypeForPath(tt.path); got != tt.want {
			t.Errorf("contentTypeForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
