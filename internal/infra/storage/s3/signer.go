// Package s3 signs listing image keys stored in an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"campusmarket/internal/app/policies"
)

const defaultPresignTTL = 15 * time.Minute

// Signer issues presigned GET URLs for listing images.
type Signer struct {
	bucket string
	ttl    time.Duration
	client *minio.Client
	logger *slog.Logger
}

// NewSigner configures a signer using the provided endpoint and credentials.
func NewSigner(endpoint string, useSSL bool, accessKey, secretKey, bucket string, ttl time.Duration, logger *slog.Logger) (*Signer, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}

	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
		// signing is local; a fixed region skips the bucket location lookup
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &Signer{bucket: bucket, ttl: ttl, client: minioClient, logger: logger}, nil
}

// SignedURL returns a time-limited URL for key. Keys that are already
// absolute URLs are returned unchanged.
func (s *Signer) SignedURL(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if isAbsoluteURL(key) {
		return key, nil
	}
	key = strings.TrimLeft(key, "/")
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("s3: presign %s: %w", key, err)
	}
	if s.logger != nil {
		s.logger.Debug("s3 url signed", "bucket", s.bucket, "key", key, "ttl", s.ttl)
	}
	return u.String(), nil
}

// Ping backs the readiness check.
func (s *Signer) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("s3: bucket %s does not exist", s.bucket)
	}
	return nil
}

// NoopSigner returns keys unchanged when S3 is not configured.
type NoopSigner struct{}

func (NoopSigner) SignedURL(_ context.Context, key string) (string, error) {
	return key, nil
}

func isAbsoluteURL(raw string) bool {
	parsed, err := url.Parse(raw)
	return err == nil && parsed.Scheme != "" && parsed.Host != ""
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var (
	_ policies.ImageSigner = (*Signer)(nil)
	_ policies.ImageSigner = NoopSigner{}
)
