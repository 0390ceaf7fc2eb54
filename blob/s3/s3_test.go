package s3_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubcms/blob"
	s3blob "github.com/eringen/pubcms/blob/s3"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := s3blob.New(context.Background(), s3blob.Config{})
	assert.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	b, err := s3blob.New(context.Background(), s3blob.Config{
		Bucket:          "cms",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		KeyPrefix:       "content/",
	})
	require.NoError(t, err)
	assert.Equal(t, "content/a.png", b.Key("a.png"))
}

// TestS3RoundTrip runs against a real bucket (e.g. MinIO) when
// CMS_TEST_S3_BUCKET is set.
func TestS3RoundTrip(t *testing.T) {
	bucket := os.Getenv("CMS_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("CMS_TEST_S3_BUCKET not set")
	}
	ctx := context.Background()
	b, err := s3blob.New(ctx, s3blob.Config{
		Bucket:                 bucket,
		Region:                 os.Getenv("CMS_TEST_S3_REGION"),
		Endpoint:               os.Getenv("CMS_TEST_S3_ENDPOINT"),
		AccessKeyID:            os.Getenv("CMS_TEST_S3_ACCESS_KEY"),
		SecretAccessKey:        os.Getenv("CMS_TEST_S3_SECRET_KEY"),
		UsePathStyle:           true,
		KeyPrefix:              "pubcms-test/",
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ref, err := b.Put(ctx, strings.NewReader("s3 bytes"), "image/png", "x.png")
	require.NoError(t, err)

	rc, info, err := b.Open(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "s3 bytes", string(data))
	assert.Equal(t, "image/png", info.ContentType)

	require.NoError(t, b.Delete(ctx, ref))
	require.NoError(t, b.Delete(ctx, ref))
	_, _, err = b.Open(ctx, ref)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
