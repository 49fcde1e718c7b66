package objectstore

import (
	"errors"
	"strings"

	"github.com/datapipe-io/pipeline/internal/config"
)

const (
	defaultMaxRetries  = 5
	defaultRatePerSec  = 50
	defaultBurst       = 10
)

// ErrBucketEmpty is returned when the bucket name is an empty string.
var ErrBucketEmpty = errors.New("objectstore: bucket cannot be empty")

// Config holds S3 client configuration with production-ready defaults:
// a private sensitive field, env-driven LoadConfig, explicit Validate.
type Config struct {
	bucket string

	// Region is the AWS region the bucket lives in.
	Region string

	// Endpoint overrides the default S3 endpoint resolution; set for
	// LocalStack/MinIO-style testing backends.
	Endpoint string

	// MaxRetries bounds the adapter's exponential backoff on transient I/O
	// errors.
	MaxRetries int

	// RatePerSecond and Burst configure the client-side request throttle.
	RatePerSecond float64
	Burst         int
}

// LoadConfig loads S3 configuration from environment variables.
func LoadConfig() Config {
	return Config{
		bucket:        config.GetEnvStr("PIPELINE_BUCKET", ""),
		Region:        config.GetEnvStr("PIPELINE_AWS_REGION", "us-east-1"),
		Endpoint:      config.GetEnvStr("PIPELINE_S3_ENDPOINT", ""),
		MaxRetries:    config.GetEnvInt("PIPELINE_S3_MAX_RETRIES", defaultMaxRetries),
		RatePerSecond: float64(config.GetEnvInt("PIPELINE_S3_RATE_PER_SEC", defaultRatePerSec)),
		Burst:         config.GetEnvInt("PIPELINE_S3_BURST", defaultBurst),
	}
}

// Validate checks the S3 configuration is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.bucket) == "" {
		return ErrBucketEmpty
	}

	return nil
}

// Bucket returns the configured bucket name.
func (c Config) Bucket() string {
	return c.bucket
}
