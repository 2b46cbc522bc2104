package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required)
	Bucket string

	// Region is the AWS region (e.g., "us-east-1")
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible
	// services like MinIO)
	Endpoint string

	// AccessKeyID is the AWS access key (optional if using IAM roles)
	AccessKeyID string

	// SecretAccessKey is the AWS secret key (optional if using IAM roles)
	SecretAccessKey string

	// UsePathStyle forces path-style addressing (required for MinIO)
	UsePathStyle bool

	// Prefix is an optional prefix for all keys (e.g., "attachments/")
	Prefix string
}

// S3Backend implements Backend using Amazon S3 or S3-compatible storage.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates a new S3 backend and verifies the bucket is reachable.
func NewS3(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, &Error{Op: "NewS3", Err: fmt.Errorf("bucket name is required")}
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	// Static credentials if provided, otherwise the default chain
	// (environment variables, IAM roles, etc.)
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &Error{Op: "NewS3", Err: fmt.Errorf("load AWS config: %w", err)}
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, &Error{Op: "NewS3", Err: fmt.Errorf("bucket not accessible: %w", err)}
	}

	return &S3Backend{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (b *S3Backend) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + key
}

func isNotFoundError(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404")
}

// Exists checks if a file exists at the given key.
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, &Error{Op: "Exists", Key: key, Err: err}
	}
	return true, nil
}

// Reader returns a reader for the file content.
func (b *S3Backend) Reader(ctx context.Context, key string) (io.ReadCloser, *FileInfo, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil, &Error{Op: "Reader", Key: key, Err: errNotFound{}}
		}
		return nil, nil, &Error{Op: "Reader", Key: key, Err: err}
	}

	info := &FileInfo{Key: key}
	if output.ContentType != nil {
		info.ContentType = *output.ContentType
	}
	if output.ContentLength != nil {
		info.Size = *output.ContentLength
	}
	if output.LastModified != nil {
		info.ModTime = *output.LastModified
	}

	return output.Body, info, nil
}

// Write stores content at the given key. Content is buffered in memory
// so the upload can carry an exact Content-Length; attachment size
// limits keep this bounded.
func (b *S3Backend) Write(ctx context.Context, key string, content io.Reader, size int64, contentType string) (*FileInfo, error) {
	var buf bytes.Buffer

	var written int64
	var err error
	if size >= 0 {
		written, err = io.CopyN(&buf, content, size)
		if err == io.EOF && written < size {
			return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("short content: got %d of %d bytes", written, size)}
		}
	} else {
		written, err = io.Copy(&buf, content)
	}
	if err != nil && err != io.EOF {
		return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("buffer content: %w", err)}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.fullKey(key)),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(written),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return nil, &Error{Op: "Write", Key: key, Err: err}
	}

	return &FileInfo{
		Key:         key,
		Size:        written,
		ContentType: contentType,
		ModTime:     time.Now(),
	}, nil
}

// Delete removes a file. S3 deletes are idempotent.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		return &Error{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

// Close is a no-op for the S3 backend.
func (b *S3Backend) Close() error {
	return nil
}
