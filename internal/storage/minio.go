package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"veritas/internal/pipeline"
)

// MinIOConfig holds connection settings for the object store
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinIOPreviewStore keeps previews as objects in a bucket.
// Paths take the form s3://bucket/name.
type MinIOPreviewStore struct {
	client *miniogo.Client
	bucket string
}

// NewMinIOPreviewStore creates a store backed by a MinIO client
func NewMinIOPreviewStore(cfg MinIOConfig) (*MinIOPreviewStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOPreviewStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the preview bucket if it does not exist
func (s *MinIOPreviewStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Save uploads img as a JPEG object
func (s *MinIOPreviewStore) Save(ctx context.Context, name string, img image.Image) (string, error) {
	data, err := encodeJPEG(img)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", fmt.Errorf("upload preview: %w", err)
	}
	return objectPath(s.bucket, name), nil
}

// Open fetches the object referenced by path
func (s *MinIOPreviewStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, name, err := parseObjectPath(path)
	if err != nil {
		return nil, err
	}
	if bucket != s.bucket {
		return nil, fmt.Errorf("%w: bucket %q", ErrInvalidPath, bucket)
	}

	obj, err := s.client.GetObject(ctx, bucket, name, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, objectError(path, err)
	}
	// GetObject is lazy; Stat issues the request.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, objectError(path, err)
	}
	return obj, nil
}

// objectError maps a missing object or bucket to os.ErrNotExist
func objectError(path string, err error) error {
	switch miniogo.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("preview %s: %w", path, os.ErrNotExist)
	}
	return fmt.Errorf("download preview: %w", err)
}

func objectPath(bucket, name string) string {
	return "s3://" + bucket + "/" + name
}

func parseObjectPath(path string) (string, string, error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	bucket, name, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return bucket, name, nil
}

var _ pipeline.PreviewStore = (*MinIOPreviewStore)(nil)
