package repository

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"rirranges/internal/config"
	"rirranges/internal/model"
)

type mockPutter struct {
	putObjectFunc func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
}

func (m *mockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.putObjectFunc(ctx, params)
}

func TestObjectStoreSink_Publish(t *testing.T) {
	var got *s3.PutObjectInput
	var body []byte

	client := &mockPutter{
		putObjectFunc: func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			got = params
			var err error
			body, err = io.ReadAll(params.Body)
			return &s3.PutObjectOutput{}, err
		},
	}

	logger, _ := zap.NewDevelopment()
	sink := NewObjectStoreSink(client, "ranges", "v1/", logger)

	err := sink.Publish(context.Background(), "JP", model.IPv4, []string{"1.0.0.0/22", "1.0.4.0/23"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aws.ToString(got.Bucket) != "ranges" {
		t.Errorf("expected bucket ranges, got %s", aws.ToString(got.Bucket))
	}
	if aws.ToString(got.Key) != "v1/ipv4/JP.json" {
		t.Errorf("expected key v1/ipv4/JP.json, got %s", aws.ToString(got.Key))
	}
	if aws.ToString(got.ContentType) != "application/json" {
		t.Errorf("unexpected content type %s", aws.ToString(got.ContentType))
	}
	if aws.ToString(got.CacheControl) != "public, max-age=86400" {
		t.Errorf("unexpected cache control %s", aws.ToString(got.CacheControl))
	}
	if string(body) != "[\n  \"1.0.0.0/22\",\n  \"1.0.4.0/23\"\n]" {
		t.Errorf("unexpected body %q", string(body))
	}
}

func TestObjectStoreSink_PublishError(t *testing.T) {
	client := &mockPutter{
		putObjectFunc: func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	sink := NewObjectStoreSink(client, "ranges", "", zap.NewNop())
	if err := sink.Publish(context.Background(), "JP", model.IPv4, []string{"1.0.0.0/22"}); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestNewR2Client_MissingCredentials(t *testing.T) {
	_, err := NewR2Client(context.Background(), config.R2{Bucket: "ranges"})
	if err == nil {
		t.Error("expected error, got nil")
	}
}
