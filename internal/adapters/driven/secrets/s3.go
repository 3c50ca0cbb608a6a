package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// Ensure S3 implements the interface.
var _ driven.SecretSource = (*S3)(nil)

// maxSecretSize caps how much of an object is read.
const maxSecretSize = 64 << 10

// objectGetter is the part of *s3.Client used here.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config locates secrets in an S3-compatible bucket.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	Prefix          string `toml:"prefix"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// S3 reads each secret from the object <prefix><name>.
type S3 struct {
	bucket string
	prefix string
	client objectGetter
}

// NewS3 creates an S3 source. Credentials come from the default AWS chain
// unless an access key is configured. A custom endpoint (MinIO and friends)
// switches to path-style addressing.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, &domain.ConfigurationError{Setting: "secret_source.s3.bucket", Reason: "is required"}
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3(cfg.Bucket, cfg.Prefix, client), nil
}

func newS3(bucket, prefix string, client objectGetter) *S3 {
	return &S3{bucket: bucket, prefix: prefix, client: client}
}

// GetSecret returns the object's content without surrounding whitespace.
func (s *S3) GetSecret(ctx context.Context, name string) (string, error) {
	key := s.prefix + name
	logger.Debug("secrets: reading s3://%s/%s", s.bucket, key)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return "", fmt.Errorf("%w: %s", domain.ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("s3 get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxSecretSize))
	if err != nil {
		return "", fmt.Errorf("read s3 object %s: %w", key, err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", domain.ErrSecretNotFound, name)
	}
	return value, nil
}
