// Package s3 implements tarchan.ObjectStore on top of S3-compatible
// object storage using the AWS SDK v2.
//
// The implementation works against AWS S3 as well as MinIO and other
// compatible stores; path-style addressing and a custom endpoint are
// supported for the latter. Create-if-absent semantics use the storage
// layer's native conditional write (If-None-Match: *), which both AWS S3
// and MinIO enforce atomically.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tarchan/tarchan"
)

// Config holds the connection settings for an S3-compatible store.
type Config struct {
	// Endpoint overrides the SDK's default endpoint. Required for MinIO
	// and other non-AWS stores; leave empty for AWS S3.
	Endpoint string
	// Region of the bucket.
	Region string
	// AccessKeyID and SecretAccessKey provide static credentials. When
	// both are empty the SDK's default credential chain is used
	// (environment, shared config, instance role).
	AccessKeyID     string
	SecretAccessKey string
	// UsePathStyle forces path-style addressing (bucket in the path
	// rather than the host). Required for most MinIO deployments.
	UsePathStyle bool
}

// NewClient builds an S3 client from the given config.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return client, nil
}

// Store implements tarchan.ObjectStore against one bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewStore creates a store for the given bucket.
func NewStore(client *s3.Client, bucket string) *Store {
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

// Get reads a whole object into memory.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("get object %s: %w", key, tarchan.ErrNotFound)
		}
		return nil, upstreamError("get object", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, upstreamError("read object", key, err)
	}

	return data, nil
}

// HeadExists reports whether an object exists.
func (s *Store) HeadExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, upstreamError("head object", key, err)
	}
	return true, nil
}

// Put writes an object unconditionally.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return upstreamError("put object", key, err)
	}
	return nil
}

// PutIfAbsent writes an object only if the key does not already exist.
// The store enforces this atomically via If-None-Match, so two racing
// writers resolve to exactly one winner and one ErrAlreadyExists.
func (s *Store) PutIfAbsent(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("put object %s: %w", key, tarchan.ErrAlreadyExists)
		}
		return upstreamError("put object", key, err)
	}
	return nil
}

// List returns all objects under the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]tarchan.ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{Bucket: &s.bucket}
	if prefix != "" {
		input.Prefix = &prefix
	}

	var objects []tarchan.ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, upstreamError("list objects", prefix, err)
		}
		for _, obj := range page.Contents {
			info := tarchan.ObjectInfo{Key: aws.ToString(obj.Key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}

	return objects, nil
}

// PresignGet returns a time-limited GET URL for an object. This is a
// local signing operation; no request is made to the store.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", upstreamError("presign get", key, err)
	}
	return req.URL, nil
}

func upstreamError(op, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %v", op, key, tarchan.ErrUpstream, err)
}
