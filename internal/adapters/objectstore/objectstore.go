// Package objectstore reads game build files from S3-compatible storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sentinel kinds for object storage errors.
var (
	ErrNotFound      = errors.New("object not found")
	ErrNotConfigured = errors.New("object storage not configured")
)

// Object is an open object body with its metadata. Callers close Body.
type Object struct {
	Body         io.ReadCloser
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Reader is the narrow read surface the HTTP layer needs.
type Reader interface {
	Get(ctx context.Context, key string) (*Object, error)
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
	Bucket() string
}

// Config holds connection settings.
type Config struct {
	Endpoint        string // host[:port], no scheme
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	Transport       http.RoundTripper
}

// MinioReader implements Reader with minio-go.
type MinioReader struct {
	client *minio.Client
	bucket string
}

// NewMinio builds a client. R2 accepts the "auto" region, which also skips
// the bucket location lookup.
func NewMinio(cfg Config) (*MinioReader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, ErrNotConfigured
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:    cfg.UseSSL,
		Region:    region,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &MinioReader{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the bucket name.
func (m *MinioReader) Bucket() string { return m.bucket }

// Get opens key for streaming. Body reads run under ctx, so ctx must outlive the download.
func (m *MinioReader) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, mapError(err)
	}
	return &Object{
		Body:         obj,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// List returns up to limit objects under prefix.
func (m *MinioReader) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   limit,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func mapError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
