package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreUploadReturnsPublicURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "exec-1/job1.mp4", []byte("video-bytes"), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/static/exec-1/job1.mp4", url)

	written, err := os.ReadFile(filepath.Join(dir, "exec-1", "job1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), written)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "../outside.txt", []byte("x"), "")
	require.Error(t, err)

	_, err = store.Upload(context.Background(), "   ", []byte("x"), "")
	require.Error(t, err)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = input
	return &s3.PutObjectOutput{}, f.err
}

func TestS3StoreUpload(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3StoreWithClient(fake, "synthome-media", "us-east-1")

	url, err := store.Upload(context.Background(), "exec-1/job2.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://synthome-media.s3.us-east-1.amazonaws.com/exec-1/job2.png", url)
	require.NotNil(t, fake.input)
	assert.Equal(t, "synthome-media", aws.StringValue(fake.input.Bucket))
	assert.Equal(t, "exec-1/job2.png", aws.StringValue(fake.input.Key))
	assert.Equal(t, "image/png", aws.StringValue(fake.input.ContentType))
}

func TestS3StoreUploadError(t *testing.T) {
	store := NewS3StoreWithClient(&fakeS3{err: errors.New("denied")}, "bucket", "us-east-1")
	_, err := store.Upload(context.Background(), "k.png", []byte("x"), "")
	require.Error(t, err)
}
