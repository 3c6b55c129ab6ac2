package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"securedocs/internal/domain"
	"securedocs/internal/storage"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultChunkSize = 5 * 1024 * 1024 // 5MB
)

// Client stores objects in an S3-compatible bucket.
type Client struct {
	client *s3.Client
	bucket string
}

var _ storage.Storage = (*Client)(nil)

// NewClient builds the client and checks that the bucket is reachable.
func NewClient(ctx context.Context, conf Config) (*Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("missing required configuration: %w", err)
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	opts := s3.Options{
		Region:           conf.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	}
	if conf.Endpoint != "" {
		opts.BaseEndpoint = aws.String(conf.Endpoint)
		opts.UsePathStyle = true
	}

	c := &Client{
		client: s3.New(opts),
		bucket: conf.Bucket,
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return c, nil
}

func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if key == "" || r == nil {
		return fmt.Errorf("key and body are required")
	}

	// The SDK needs a seekable body to sign the payload.
	body, ok := r.(io.ReadSeeker)
	if !ok {
		capacity := int64(defaultChunkSize)
		if size >= 0 && size < capacity {
			capacity = size
		}
		buf := bytes.NewBuffer(make([]byte, 0, capacity))
		if _, err := io.Copy(buf, r); err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		body = bytes.NewReader(buf.Bytes())
	}

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}
	return nil
}

func (c *Client) Open(ctx context.Context, key string) (storage.Object, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return storage.NewObject(result.Body, aws.ToInt64(result.ContentLength)), nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// Delete is a no-op for keys that are already gone.
func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	exists, err := c.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	_, err = c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
