// Package blob fetches image bytes referenced by task URIs. Tasks may carry
// s3://bucket/key URIs, bare object keys (resolved against a default
// bucket), or plain filesystem paths when no object store is configured.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

const s3Scheme = "s3://"

// Fetcher retrieves the raw bytes behind a task image_url.
type Fetcher interface {
	Get(ctx context.Context, uri string) ([]byte, error)
}

// ParseS3URI splits an s3://bucket/key URI on the first slash after the
// scheme. ok is false when the input does not carry the s3 scheme.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	return bucket, key, true
}

// Store fetches objects from a MinIO/S3 endpoint.
type Store struct {
	client        *minio.Client
	defaultBucket string
}

// NewStore connects to the object store. The endpoint may carry an http or
// https scheme; https enables TLS.
func NewStore(endpoint, accessKey, secretKey, defaultBucket string) (*Store, error) {
	host := endpoint
	secure := false
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
		secure = u.Scheme == "https"
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to object store: %w", err)
	}

	log.Info().Str("endpoint", host).Str("bucket", defaultBucket).Msg("Object store configured")
	return &Store{client: client, defaultBucket: defaultBucket}, nil
}

// Get downloads one object. Bare keys resolve against the default bucket.
func (s *Store) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, ok := ParseS3URI(uri)
	if !ok {
		bucket, key = s.defaultBucket, uri
	}
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid object reference %q", uri)
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Local reads bare paths from the filesystem. It is the fallback when no
// object store is configured.
type Local struct{}

func (Local) Get(_ context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, s3Scheme) {
		return nil, fmt.Errorf("no object store configured for %q", uri)
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to read local file: %w", err)
	}
	return data, nil
}
