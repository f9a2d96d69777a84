package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3Store.
type S3Config struct {
	Bucket string
	Region string

	// Endpoint overrides the S3 endpoint (MinIO, LocalStack). Enables path-style addressing.
	Endpoint string

	// PublicBaseURL is prepended to object keys in returned URLs. When empty,
	// s3://bucket/key URLs are returned.
	PublicBaseURL string

	// Prefix is prepended to every object key.
	Prefix string
}

// S3Store uploads screenshots to a bucket. Expiry is left to the bucket's
// lifecycle rules.
type S3Store struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Store loads AWS credentials from the default chain and returns a store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, cfg: cfg}, nil
}

// Put uploads data under <prefix>/<name>.
func (s *S3Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}
	return s.objectURL(key), nil
}

func (s *S3Store) key(name string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (s *S3Store) objectURL(key string) string {
	if s.cfg.PublicBaseURL == "" {
		return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key)
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
}
