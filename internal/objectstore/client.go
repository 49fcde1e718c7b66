package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeOctet   = "application/octet-stream"
	backoffBase        = 100 * time.Millisecond
	healthCheckTimeout = 5 * time.Second
)

// S3Client implements Client against a real (or LocalStack-backed) S3
// bucket: an env-loaded Config and a constructor that performs an
// immediate health check. It has no Close or Stats method.
type S3Client struct {
	raw     *s3.Client
	bucket  string
	retries int
	limiter *rate.Limiter
}

// NewS3Client builds an S3Client from cfg, performing an immediate
// HeadBucket health check.
func NewS3Client(ctx context.Context, cfg Config) (*S3Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	raw := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required by LocalStack/MinIO-style endpoints
		}
	})

	client := &S3Client{
		raw:     raw,
		bucket:  cfg.Bucket(),
		retries: cfg.MaxRetries,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if _, err := raw.HeadBucket(healthCtx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket())}); err != nil {
		return nil, fmt.Errorf("objectstore health check failed: %w", err)
	}

	return client, nil
}

// Get implements Client.
func (c *S3Client) Get(ctx context.Context, key string) (Object, error) {
	var out Object

	err := c.withRetry(ctx, func() error {
		resp, err := c.raw.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}

			return err
		}
		defer resp.Body.Close()

		body, err := ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read object %s: %w", key, err)
		}

		out = Object{Body: body, ETag: aws.ToString(resp.ETag)}

		return nil
	})

	return out, err
}

// Head implements Client.
func (c *S3Client) Head(ctx context.Context, key string) (string, error) {
	var etag string

	err := c.withRetry(ctx, func() error {
		resp, err := c.raw.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}

			return err
		}

		etag = aws.ToString(resp.ETag)

		return nil
	})

	return etag, err
}

// Put implements Client, including the CAS contract of :
// If-Match mismatches and if-none-match-on-create conflicts both surface
// as *PreconditionFailedError, never retried.
func (c *S3Client) Put(ctx context.Context, key string, body []byte, opts PutOptions) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeFor(opts)),
	}

	if opts.IfMatch != "" {
		input.IfMatch = aws.String(opts.IfMatch)
	}

	if opts.IfAbsent {
		input.IfNoneMatch = aws.String("*")
	}

	var etag string

	putOnce := func() error {
		resp, err := c.raw.PutObject(ctx, input)
		if err != nil {
			if isPreconditionFailed(err) {
				return &PreconditionFailedError{Key: key}
			}

			return err
		}

		etag = aws.ToString(resp.ETag)

		return nil
	}

	// CAS conflicts are never retried; only transient I/O is.
	if opts.IfMatch != "" || opts.IfAbsent {
		return etag, putOnce()
	}

	return etag, c.withRetry(ctx, putOnce)
}

// Delete implements Client.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	return c.withRetry(ctx, func() error {
		_, err := c.raw.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})

		return err
	})
}

// List implements Client, paginating transparently.
func (c *S3Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	var token *string

	for {
		var page *s3.ListObjectsV2Output

		err := c.withRetry(ctx, func() error {
			resp, err := c.raw.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(c.bucket),
				Prefix:            aws.String(prefix),
				ContinuationToken: token,
			})
			if err != nil {
				return err
			}

			page = resp

			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}

		token = page.NextContinuationToken
	}

	return keys, nil
}

// Copy implements Client, used by the projection consolidator's WAL
// move-from-temp step.
func (c *S3Client) Copy(ctx context.Context, src, dst string) error {
	return c.withRetry(ctx, func() error {
		_, err := c.raw.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(c.bucket),
			Key:        aws.String(dst),
			CopySource: aws.String(c.bucket + "/" + src),
		})

		return err
	})
}

// withRetry applies bounded exponential backoff around transient I/O
// errors, leaving precondition failures (already converted by the caller)
// and context cancellation untouched.
func (c *S3Client) withRetry(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}

		if errors.Is(err, ErrNotFound) || isPreconditionFailedErr(err) || ctx.Err() != nil {
			return err
		}

		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffBase << attempt): //nolint:gosec // bounded by c.retries
		}
	}

	return fmt.Errorf("objectstore: exhausted retries: %w", lastErr)
}

func isPreconditionFailedErr(err error) bool {
	var precond *PreconditionFailedError

	return errors.As(err, &precond)
}

func contentTypeFor(opts PutOptions) string {
	if opts.ContentType != "" {
		return opts.ContentType
	}

	return contentTypeOctet
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}

	var apiErr smithy.APIError

	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	default:
		return false
	}
}
