package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectAPI is the subset of *s3.Client the driver calls.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Driver keeps archived output in one bucket of an S3-compatible store.
type S3Driver struct {
	Client ObjectAPI
	Bucket string
}

func NewS3Driver(client ObjectAPI, bucket string) *S3Driver {
	return &S3Driver{Client: client, Bucket: bucket}
}

func (d *S3Driver) object(key string) (*string, *string) {
	return aws.String(d.Bucket), aws.String(key)
}

func (d *S3Driver) Save(ctx context.Context, key string, content io.Reader, contentType string) error {
	bucket, k := d.object(key)
	if _, err := d.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      bucket,
		Key:         k,
		Body:        content,
		ContentType: aws.String(contentType),
	}); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// Get maps a missing key to ErrObjectNotFound.
func (d *S3Driver) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	bucket, k := d.object(key)
	resp, err := d.Client.GetObject(ctx, &s3.GetObjectInput{Bucket: bucket, Key: k})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to get from S3: %w", err)
	}

	contentType := aws.ToString(resp.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resp.Body, contentType, nil
}

func (d *S3Driver) Delete(ctx context.Context, key string) error {
	bucket, k := d.object(key)
	if _, err := d.Client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: k}); err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}
