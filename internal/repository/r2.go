package repository

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"rirranges/internal/config"
	"rirranges/internal/model"
)

const (
	contentTypeJSON = "application/json"
	cacheControl    = "public, max-age=86400"
)

// ObjectPutter is the subset of the S3 client used by ObjectStoreSink.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectStoreSink uploads each table to an S3 compatible bucket such as
// Cloudflare R2.
type ObjectStoreSink struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

func NewObjectStoreSink(client ObjectPutter, bucket, prefix string, logger *zap.Logger) *ObjectStoreSink {
	return &ObjectStoreSink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// NewR2Client builds an S3 client for the account's R2 endpoint.
func NewR2Client(ctx context.Context, cfg config.R2) (*s3.Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading S3 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	}), nil
}

func (s *ObjectStoreSink) Publish(ctx context.Context, country string, family model.Family, cidrs []string) error {
	data, err := model.EncodeRangeList(cidrs)
	if err != nil {
		return fmt.Errorf("encoding ranges: %w", err)
	}

	key := s.prefix + model.ObjectKey(family, country)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentTypeJSON),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}

	s.logger.Debug("uploaded ranges object",
		zap.String("bucket", s.bucket),
		zap.String("key", key))

	return nil
}
