package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/deckhand-io/deckhand/types"
)

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// s3API is the subset of the S3 client used by the store. Narrowed for
// test injection.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes artifacts to S3 (or an S3-compatible provider).
// Write-once is enforced with a conditional put (If-None-Match: *).
type S3Store struct {
	client s3API
	config S3Config
}

// NewS3Store creates an S3 store using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
	}, nil
}

// NewS3StoreWithClient creates an S3 store around an existing client.
// Used for test injection.
func NewS3StoreWithClient(client s3API, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &S3Store{client: client, config: cfg}, nil
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, ref *types.ArtifactRef, data []byte) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}

	key := objectKey(ref)
	if s.config.Prefix != "" {
		key = strings.TrimSuffix(s.config.Prefix, "/") + "/" + key
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		// Conditional put: fail if the key already exists.
		IfNoneMatch: aws.String("*"),
	}
	if ref.ContentType != "" {
		input.ContentType = aws.String(ref.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", wrapWriteError(err, key)
	}

	return fmt.Sprintf("s3://%s/%s", s.config.Bucket, key), nil
}

// Close implements Store.
func (s *S3Store) Close() error { return nil }

// Verify S3Store implements Store.
var _ Store = (*S3Store)(nil)
