// Package s3 implements the durable blob backend over Amazon S3 or any
// S3-compatible object store (MinIO, R2) via a custom endpoint.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/curatorbot/curator/internal/persist"
)

// Compile-time interface guard.
var _ persist.Backend = (*Backend)(nil)

// Config configures the S3 backend. Credentials come from the default AWS
// credential chain (env, shared config, instance role).
type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint for S3-compatible stores.
	Endpoint string
}

// Backend stores each key as one object with whole-object replace semantics.
type Backend struct {
	client *s3.Client
	bucket string
}

// New builds a Backend from the default credential chain.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible stores generally require path-style addressing.
			o.UsePathStyle = true
		}
	})

	return &Backend{client: client, bucket: cfg.Bucket}, nil
}

// Load implements persist.Backend.
func (b *Backend) Load(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, persist.ErrNotFound
		}
		return nil, fmt.Errorf("s3: get %s/%s: %w", b.bucket, key, err)
	}
	defer out.Body.Close() //nolint:errcheck // best-effort close

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %s/%s: %w", b.bucket, key, err)
	}
	return data, nil
}

// Save implements persist.Backend.
func (b *Backend) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s/%s: %w", b.bucket, key, err)
	}
	return nil
}
