package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3 stores images in an S3-compatible bucket (MinIO, AWS S3). The
// client is built lazily in Initialize so construction never touches
// the network.
type S3 struct {
	cfg    Config
	client *s3.Client
}

// NewS3 returns an uninitialized S3 adapter.
func NewS3(cfg Config) *S3 {
	return &S3{cfg: cfg}
}

// Initialize builds the S3 client from static credentials and ensures
// the configured bucket exists, creating it when missing.
func (a *S3) Initialize(ctx context.Context) error {
	if a.cfg.Bucket == "" {
		return fmt.Errorf("storage: bucket must be configured")
	}
	if a.cfg.AccessKey == "" || a.cfg.SecretKey == "" {
		return fmt.Errorf("storage: access key and secret key must be configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(a.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.cfg.AccessKey,
			a.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return fmt.Errorf("storage: load aws config: %w", err)
	}

	a.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(a.cfg.Endpoint)
		// MinIO and most self-hosted S3 endpoints require path-style addressing.
		o.UsePathStyle = true
	})

	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.cfg.Bucket)}); err != nil {
		if _, cerr := a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.cfg.Bucket)}); cerr != nil {
			return fmt.Errorf("storage: ensure bucket %q: %w", a.cfg.Bucket, cerr)
		}
		log.Info().Str("bucket", a.cfg.Bucket).Msg("storage bucket created")
	}
	return nil
}

// Store uploads data under a timestamped object key derived from name
// and returns the durable URL.
func (a *S3) Store(ctx context.Context, data []byte, name, contentType string) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("storage: not initialized")
	}

	key := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), name)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}

	url := a.FileURL(key)
	log.Debug().Str("url", url).Int("bytes", len(data)).Msg("image stored")
	return url, nil
}

// FileURL returns the public URL for an object key.
func (a *S3) FileURL(name string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.cfg.Endpoint, "/"), a.cfg.Bucket, name)
}

// Delete removes an object by key.
func (a *S3) Delete(ctx context.Context, name string) error {
	if a.client == nil {
		return fmt.Errorf("storage: not initialized")
	}
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("storage: delete object: %w", err)
	}
	return nil
}
