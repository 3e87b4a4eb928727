package objstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/services"
)

// PutRequest describes one file upload.
type PutRequest struct {
	Key         string
	FilePath    string
	ContentType string
}

// PutResult reports a completed upload. Key is the full object key with the
// configured prefix applied.
type PutResult struct {
	Bucket    string
	Key       string
	SizeBytes int64
	ETag      string
}

// ObjectInfo describes a stored object. Exists is false when the key is
// absent from the bucket.
type ObjectInfo struct {
	Key       string
	SizeBytes int64
	ETag      string
	Exists    bool
}

// Client defines the behaviour required by the upload stage.
type Client interface {
	Put(ctx context.Context, req PutRequest) (PutResult, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	EnsureBucket(ctx context.Context) error
	Health(ctx context.Context) error
}

// MinioClient implements Client against any S3-compatible endpoint.
type MinioClient struct {
	api     *minio.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewMinio constructs a storage client from the storage configuration.
func NewMinio(cfg *config.Config) (*MinioClient, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	endpoint := strings.TrimSpace(cfg.Storage.Endpoint)
	if endpoint == "" {
		return nil, errors.New("storage endpoint required")
	}
	bucket := strings.TrimSpace(cfg.Storage.Bucket)
	if bucket == "" {
		return nil, errors.New("storage bucket required")
	}

	api, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.Storage.AccessKey), strings.TrimSpace(cfg.Storage.SecretKey), ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &MinioClient{
		api:     api,
		bucket:  bucket,
		prefix:  strings.Trim(strings.TrimSpace(cfg.Storage.Prefix), "/"),
		timeout: cfg.StorageTimeout(),
	}, nil
}

// Bucket returns the configured bucket name.
func (c *MinioClient) Bucket() string {
	return c.bucket
}

// ObjectKey returns the full object key for a stage-level key, with the
// configured prefix applied.
func (c *MinioClient) ObjectKey(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if c.prefix == "" {
		return key
	}
	return c.prefix + "/" + key
}

// Put uploads one local file under the prefixed key.
func (c *MinioClient) Put(ctx context.Context, req PutRequest) (PutResult, error) {
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return PutResult{}, errors.New("object key required")
	}
	filePath := strings.TrimSpace(req.FilePath)
	if filePath == "" {
		return PutResult{}, errors.New("file path required")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return PutResult{}, services.Wrap(services.ErrNotFound, "upload", "open file", "local file is not readable", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return PutResult{}, services.Wrap(services.ErrNotFound, "upload", "stat file", "local file is not readable", err)
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = contentTypeForPath(filePath)
	}

	putCtx, cancel := c.opContext(ctx)
	defer cancel()

	objectKey := c.ObjectKey(key)
	uploaded, err := c.api.PutObject(putCtx, c.bucket, objectKey, file, info.Size(), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return PutResult{}, classifyStorageErr("put object", err)
	}

	return PutResult{
		Bucket:    c.bucket,
		Key:       objectKey,
		SizeBytes: info.Size(),
		ETag:      uploaded.ETag,
	}, nil
}

// Stat looks up an object under the prefixed key. A missing object is
// reported through Exists, not as an error.
func (c *MinioClient) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return ObjectInfo{}, errors.New("object key required")
	}

	statCtx, cancel := c.opContext(ctx)
	defer cancel()

	objectKey := c.ObjectKey(key)
	info, err := c.api.StatObject(statCtx, c.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return ObjectInfo{Key: objectKey}, nil
		}
		return ObjectInfo{}, classifyStorageErr("stat object", err)
	}

	return ObjectInfo{
		Key:       objectKey,
		SizeBytes: info.Size,
		ETag:      info.ETag,
		Exists:    true,
	}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (c *MinioClient) EnsureBucket(ctx context.Context) error {
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	exists, err := c.api.BucketExists(opCtx, c.bucket)
	if err != nil {
		return classifyStorageErr("check bucket", err)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(opCtx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return classifyStorageErr("create bucket", err)
	}
	return nil
}

// Health verifies the endpoint is reachable and the bucket exists. It never
// mutates the store, so status checks can call it freely.
func (c *MinioClient) Health(ctx context.Context) error {
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	exists, err := c.api.BucketExists(opCtx, c.bucket)
	if err != nil {
		return classifyStorageErr("check bucket", err)
	}
	if !exists {
		return services.Wrap(services.ErrConfiguration, "upload", "check bucket", fmt.Sprintf("bucket %q does not exist", c.bucket), nil)
	}
	return nil
}

func (c *MinioClient) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".m4a":
		return "audio/mp4"
	case ".opus", ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

var _ Client = (*MinioClient)(nil)
