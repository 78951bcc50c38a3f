package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	catalogerrors "github.com/icedb-go/icedb/pkg/errors"
)

// S3Store wraps an aws-sdk-go-v2 S3 client for a single bucket, grounded
// on Tessera's s3Storage (GetObject/PutObject, IfNoneMatch/smithy error
// inspection idiom). It implements Store.
type S3Store struct {
	bucket string
	client *s3.Client
	logger *logrus.Logger
	retry  RetryConfig
}

// NewS3Store builds an S3Store for bucket using the default AWS SDK
// credential chain (env vars, shared config/credentials files, IAM role,
// SSO) — the idiomatic way a Go service resolves object-store
// credentials, in place of a bespoke secret manager.
func NewS3Store(ctx context.Context, bucket string, logger *logrus.Logger, optFns ...func(*awsconfig.LoadOptions) error) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}
	return &S3Store{
		bucket: bucket,
		client: s3.NewFromConfig(cfg),
		logger: logger,
		retry:  DefaultRetryConfig(),
	}, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("list", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}
	return out, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := retrying(ctx, s.retry, s.logger, "get", key, func() error {
		r, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer r.Body.Close()
		data, err = io.ReadAll(r.Body)
		return err
	})
	return data, err
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	return retrying(ctx, s.retry, s.logger, "put", key, func() error {
		return s.putOnce(ctx, key, data)
	})
}

// PutNoRetry writes data to key with a single attempt: no retry loop.
// Used for log-object appends, the commit point for every mutating
// catalog operation, which must surface a failed write to the caller
// rather than retry it out from under them (spec.md §7).
func (s *S3Store) PutNoRetry(ctx context.Context, key string, data []byte) error {
	if err := s.putOnce(ctx, key, data); err != nil {
		return classify("put", key, err)
	}
	return nil
}

func (s *S3Store) putOnce(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *S3Store) Head(ctx context.Context, key string) (int64, error) {
	r, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, classify("head", key, err)
	}
	return aws.ToInt64(r.ContentLength), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var apiErr smithy.APIError
	if err != nil && errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return nil
	}
	if err != nil {
		return classify("delete", key, err)
	}
	return nil
}

// classify wraps a non-retried object-store error as terminal or
// transient per spec.md §7, for operations (list, head, delete) that
// aren't run through the retrying() helper.
func classify(operation, key string, err error) error {
	if isTransient(err) {
		return catalogerrors.ObjectTransient(operation, key, err)
	}
	return catalogerrors.ObjectTerminal(operation, key, err)
}
