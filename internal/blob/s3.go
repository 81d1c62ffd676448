package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"bitwise74/file-api/config"
	"bitwise74/file-api/internal/storage"
	"bitwise74/file-api/pkg/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	multipartPartSize    = 6 << 20
	multipartConcurrency = 5
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps blobs in an S3 compatible bucket (AWS, R2, MinIO). The
// storage key is used verbatim as the object key.
type S3Store struct {
	c        s3API
	bucket   *string
	uploader *manager.Uploader
}

// NewS3Store connects to the configured bucket and checks that it exists.
func NewS3Store(ctx context.Context, o config.S3) (*S3Store, error) {
	if o.Bucket == "" {
		return nil, errors.New("bucket can't be empty")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKeyID,
			o.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config, %w", err)
	}

	client := s3.NewFromConfig(cfg, func(opts *s3.Options) {
		opts.Region = o.Region
		opts.UsePathStyle = o.UsePathStyle
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
		}
	})

	bucket := aws.String(o.Bucket)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", o.Bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return newS3Store(client, o.Bucket), nil
}

func newS3Store(c s3API, bucket string) *S3Store {
	return &S3Store{
		c:      c,
		bucket: aws.String(bucket),
		uploader: manager.NewUploader(c, func(u *manager.Uploader) {
			u.Concurrency = multipartConcurrency
			u.PartSize = multipartPartSize
		}),
	}
}

func (s *S3Store) Write(ctx context.Context, key storage.Key, r io.Reader) (int64, error) {
	if key.IsZero() {
		return 0, fmt.Errorf("%w: empty storage key", apperr.ErrValidation)
	}

	if r == nil {
		return 0, fmt.Errorf("%w: no content", apperr.ErrValidation)
	}

	body := &countingReader{r: &ctxReader{ctx: ctx, r: r}}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key.String()),
		Body:   body,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: failed to upload object, %v", apperr.ErrIO, err)
	}

	return body.n, nil
}

func (s *S3Store) Read(ctx context.Context, key storage.Key) (io.ReadCloser, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("%w: empty storage key", apperr.ErrValidation)
	}

	out, err := s.c.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key.String()),
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, fmt.Errorf("%w: blob %s", apperr.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: failed to get object, %v", apperr.ErrIO, err)
	}

	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, key storage.Key) error {
	if key.IsZero() {
		return fmt.Errorf("%w: empty storage key", apperr.ErrValidation)
	}

	_, err := s.c.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key.String()),
	})
	if err != nil {
		if isMissingObject(err) {
			zap.L().Warn("Blob already absent", zap.String("key", key.String()))
			return nil
		}
		return fmt.Errorf("%w: failed to delete object, %v", apperr.ErrIO, err)
	}

	return nil
}

func isMissingObject(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}

	return false
}
