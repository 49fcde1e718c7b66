package lock

import (
	"errors"
	"strings"

	"github.com/datapipe-io/pipeline/internal/config"
)

// ErrTableNameEmpty is returned when the lock table name is an empty string.
var ErrTableNameEmpty = errors.New("lock: table name cannot be empty")

// Config holds DynamoDB lock-table configuration: env-driven LoadConfig,
// explicit Validate.
type Config struct {
	TableName string
	Region    string
	Endpoint  string
}

// LoadConfig loads lock configuration from environment variables.
func LoadConfig() Config {
	return Config{
		TableName: config.GetEnvStr("PIPELINE_LOCK_TABLE", ""),
		Region:    config.GetEnvStr("PIPELINE_AWS_REGION", "us-east-1"),
		Endpoint:  config.GetEnvStr("PIPELINE_DYNAMODB_ENDPOINT", ""),
	}
}

// Validate checks the lock configuration is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TableName) == "" {
		return ErrTableNameEmpty
	}

	return nil
}
