// Package s3 is a blob.Store backed by an S3-compatible bucket (AWS S3,
// MinIO). Objects are still referenced by "<prefix>/<name>" paths and
// streamed through the API, so clients never talk to the bucket directly.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/eringen/pubcms/blob"
)

// Config options for the S3 backend.
type Config struct {
	Bucket          string // Bucket name (required)
	Region          string // AWS region (default us-east-1)
	Endpoint        string // Custom endpoint for S3-compatible services
	AccessKeyID     string // Static credentials; default chain when empty
	SecretAccessKey string
	UsePathStyle    bool   // Path-style addressing, needed by MinIO
	KeyPrefix       string // Prepended to every object key, e.g. "cms/"
	URLPrefix       string // Reference prefix (default blob.DefaultPrefix)

	CreateBucketIfNotExist bool
}

// Backend is an S3 implementation of blob.Store.
type Backend struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	keyPrefix string
	prefix    string
}

// New loads AWS configuration and returns a Backend for cfg.Bucket.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	prefix := cfg.URLPrefix
	if prefix == "" {
		prefix = blob.DefaultPrefix
	}
	b := &Backend{
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		prefix:    prefix,
	}

	if cfg.CreateBucketIfNotExist {
		if err := b.createBucket(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backend) createBucket(ctx context.Context, region string) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err == nil {
		return nil
	}
	in := &s3.CreateBucketInput{Bucket: aws.String(b.bucket)}
	if region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, in); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("s3: create bucket %s: %w", b.bucket, err)
	}
	return nil
}

// Key maps an object name to its bucket key.
func (b *Backend) Key(name string) string {
	return b.keyPrefix + name
}

// Put implements blob.Store.
func (b *Backend) Put(ctx context.Context, r io.Reader, mediaType, originalName string) (string, error) {
	name := blob.NewObjectName(originalName)
	in := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.Key(name)),
		Body:   r,
	}
	if mediaType != "" {
		in.ContentType = aws.String(mediaType)
	}
	if _, err := b.uploader.Upload(ctx, in); err != nil {
		return "", fmt.Errorf("s3: upload %s: %w", name, err)
	}
	return blob.Ref(b.prefix, name), nil
}

// Open implements blob.Store.
func (b *Backend) Open(ctx context.Context, ref string) (io.ReadCloser, blob.Info, error) {
	name := blob.NameFromRef(ref)
	if name == "" {
		return nil, blob.Info{}, blob.ErrNotFound
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.Key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noKey) || errors.As(err, &notFound) {
			return nil, blob.Info{}, blob.ErrNotFound
		}
		return nil, blob.Info{}, fmt.Errorf("s3: get %s: %w", name, err)
	}
	info := blob.Info{
		Name:        name,
		ContentType: strings.TrimSpace(aws.ToString(out.ContentType)),
		Size:        aws.ToInt64(out.ContentLength),
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}
	return out.Body, info, nil
}

// Delete implements blob.Store. S3 deletes are idempotent, so a missing
// object is not an error.
func (b *Backend) Delete(ctx context.Context, ref string) error {
	name := blob.NameFromRef(ref)
	if name == "" {
		return nil
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.Key(name)),
	}); err != nil {
		return fmt.Errorf("s3: delete %s: %w", name, err)
	}
	return nil
}
