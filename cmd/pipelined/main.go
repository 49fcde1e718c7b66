// Package main provides the pipelined CLI: a single dataset ingestion
// invocation driven by a resolved dataset config file.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/datapipe-io/pipeline/internal/config"
	"github.com/datapipe-io/pipeline/internal/driver"
	"github.com/datapipe-io/pipeline/internal/lock"
	"github.com/datapipe-io/pipeline/internal/objectstore"
	"github.com/datapipe-io/pipeline/internal/pipeline"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "pipelined"
)

func main() {
	datasetConfigPath := flag.String("dataset-config", "", "path to the dataset's resolved YAML config")
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	logger.Info("starting pipelined run",
		slog.String("service", name),
		slog.String("version", version),
	)

	if *datasetConfigPath == "" {
		logger.Error("missing required flag", slog.String("flag", "-dataset-config"))
		os.Exit(1)
	}

	cfg, err := pipeline.LoadConfig(*datasetConfigPath)
	if err != nil {
		logger.Error("failed to load dataset config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	exitCode := run(logger, cfg)
	os.Exit(exitCode)
}

func run(logger *slog.Logger, cfg pipeline.Config) int {
	ctx := context.Background()

	storeCfg := objectstore.LoadConfig()

	store, err := objectstore.NewS3Client(ctx, storeCfg)
	if err != nil {
		logger.Error("failed to construct object store client", slog.String("error", err.Error()))
		return 1
	}

	// Fetcher, Parser and Normalizer implementations are source- and
	// format-specific external collaborators; this generic
	// entrypoint has none built in. A deployment embeds this binary's
	// driver.Run with its own Fetcher/registries rather than running
	// pipelined standalone against a real source.
	deps := driver.Deps{
		Store:       store,
		Parsers:     pipeline.ParserRegistry{},
		Normalizers: pipeline.NormalizerRegistry{},
	}

	if deps.Fetcher == nil {
		logger.Error("no fetcher registered for this build; pipelined must be embedded with a dataset-specific Fetcher")
		return 1
	}

	if cfg.LockingEnabled() {
		locker, err := lock.NewDynamoLocker(ctx, lock.LoadConfig())
		if err != nil {
			logger.Error("failed to construct lock client", slog.String("error", err.Error()))
			return 1
		}

		deps.Locker = locker
	}

	if cfg.NotifyTopic != "" {
		brokers := strings.Split(config.GetEnvStr("PIPELINE_KAFKA_BROKERS", "localhost:9092"), ",")

		notifier := pipeline.NewKafkaNotifier(brokers, cfg.NotifyTopic)
		defer func() { _ = notifier.Close() }()

		deps.Notifier = notifier
	}

	result, err := driver.Run(ctx, cfg, deps)
	if err != nil {
		logger.Error("run failed",
			slog.String("run_id", result.RunID),
			slog.String("status", string(result.Status)),
			slog.String("error", err.Error()),
		)

		return 1
	}

	logger.Info("run completed",
		slog.String("run_id", result.RunID),
		slog.String("version_ts", result.VersionTS),
		slog.String("status", string(result.Status)),
		slog.Int("rows_added", result.RowsAdded),
	)

	if result.Status == pipeline.StatusError {
		return 1
	}

	return 0
}
