package storage

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/abduss/cloudbox/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	objectStoreTimeout = 5 * time.Second
	defaultMinIOPort   = "9000"
)

// NewMinIOClient builds a client for cfg.Endpoint. An endpoint without a port gets the MinIO API port.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(minioEndpoint(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client for %s: %w", cfg.Endpoint, err)
	}
	return client, nil
}

func minioEndpoint(endpoint string) string {
	if _, _, err := net.SplitHostPort(endpoint); err == nil {
		return endpoint
	}
	return net.JoinHostPort(endpoint, defaultMinIOPort)
}

// EnsureBucket creates the configured bucket on first start.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg config.MinIOConfig, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, objectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("lookup bucket %q: %w", cfg.Bucket, err)
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
	}
	log.Info("bucket created", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.Region))
	return nil
}

// CheckBucket fails when the bucket is unreachable or gone. Used by readiness probes.
func CheckBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	switch {
	case err != nil:
		return err
	case !exists:
		return fmt.Errorf("bucket %q does not exist", bucket)
	}
	return nil
}
