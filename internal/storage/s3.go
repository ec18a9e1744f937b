package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// s3Uploader is the slice of the S3 client the store depends on.
type s3Uploader interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Store persists assets into an S3 bucket.
type S3Store struct {
	client s3Uploader
	bucket string
	region string
}

// NewS3Store builds a store over a fresh AWS session. Credentials come from
// the ambient chain (env, shared config, instance role).
func NewS3Store(bucket, region string) (*S3Store, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("storage: create aws session: %w", err)
	}
	return &S3Store{client: s3.New(sess), bucket: bucket, region: region}, nil
}

// NewS3StoreWithClient injects a client, used by tests.
func NewS3StoreWithClient(client s3Uploader, bucket, region string) *S3Store {
	return &S3Store{client: client, bucket: bucket, region: region}
}

// Upload writes the object and returns its virtual-hosted URL.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("storage: put object %s: %w", cleanKey, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, cleanKey), nil
}
