package pipeline

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/datapipe-io/pipeline/internal/config"
)

// Static validation errors for Config.
var (
	ErrDatasetIDEmpty    = errors.New("dataset_id cannot be empty")
	ErrPrimaryKeysEmpty  = errors.New("primary_keys cannot be empty")
	ErrTimezoneInvalid   = errors.New("timezone is not a valid IANA location")
	ErrLagDaysNegative   = errors.New("lag_days cannot be negative")
)

const (
	// DefaultConfigPathEnvVar names the env var pointing at a dataset's
	// resolved YAML config. Production config resolution (a config
	// service, templated per-dataset YAML) is an external collaborator;
	// this loader exists for local runs and tests.
	DefaultConfigPathEnvVar = "PIPELINE_DATASET_CONFIG_PATH"

	// DefaultLockTTL is the lease TTL the driver requests on every run;
	// the dataset config has no setting that overrides it.
	DefaultLockTTL = 1 * time.Hour
)

type (
	// Config is the resolved dataset configuration the core consumes.
	// Loading it from a repository of dataset YAML files is out of core
	// scope; LoadConfig below is a dev-time convenience for local runs
	// and tests.
	Config struct {
		DatasetID  string   `yaml:"dataset_id"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		PrimaryKeys []string `yaml:"primary_keys"`
		Timezone    string   `yaml:"timezone"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		LagDays int `yaml:"lag_days"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		FullReload bool `yaml:"full_reload"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		LockTableName string `yaml:"lock_table_name"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		NotifyTopic string `yaml:"notify_topic"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		ParserName string `yaml:"parser"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		NormalizerName string `yaml:"normalizer"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		ConsistencyTolerance int `yaml:"consistency_tolerance"`
		//nolint:tagliatelle // snake_case matches the dataset config file convention
		PublishEmptyDelta bool `yaml:"publish_empty_delta"`
	}
)

// LockingEnabled reports whether a distributed lock guards this dataset's
// runs. Absence of lock_table_name disables locking.
func (c Config) LockingEnabled() bool {
	return c.LockTableName != ""
}

// Location resolves the configured timezone, defaulting to UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}

	return time.LoadLocation(c.Timezone)
}

// Tolerance returns the configured consistency-guard tolerance, defaulting
// to a ±10 row-count heuristic.
func (c Config) Tolerance() int {
	if c.ConsistencyTolerance > 0 {
		return c.ConsistencyTolerance
	}

	return DefaultConsistencyTolerance
}

// DefaultConsistencyTolerance is the ±10 row-count drift the guard accepts
// between the PK index and an event manifest's rows_total.
const DefaultConsistencyTolerance = 10

// Validate checks the required dataset config fields.
func (c Config) Validate() error {
	if c.DatasetID == "" {
		return ErrDatasetIDEmpty
	}

	if len(c.PrimaryKeys) == 0 {
		return ErrPrimaryKeysEmpty
	}

	if c.LagDays < 0 {
		return ErrLagDaysNegative
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTimezoneInvalid, c.Timezone, err)
	}

	return nil
}

// LoadConfig loads a dataset config from a YAML file at the given path.
// A missing or invalid dataset config is fatal: primary_keys and
// dataset_id are load-bearing for every downstream component, so silent
// degradation would corrupt the delta and publish steps rather than
// merely skip an optional feature.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from a trusted deployment source
	if err != nil {
		return Config{}, fmt.Errorf("read dataset config %s: %w", path, err)
	}

	var cfg Config

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse dataset config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid dataset config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadConfigFromEnv loads the dataset config from the path named by
// PIPELINE_DATASET_CONFIG_PATH.
func LoadConfigFromEnv() (Config, error) {
	path := config.GetEnvStr(DefaultConfigPathEnvVar, "")
	if path == "" {
		return Config{}, fmt.Errorf("%s not set", DefaultConfigPathEnvVar)
	}

	return LoadConfig(path)
}
