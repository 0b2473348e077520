package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/cme-data-etl/internal/adapter/donki"
	kafkaadapter "github.com/couchcryptid/cme-data-etl/internal/adapter/kafka"
	mongoadapter "github.com/couchcryptid/cme-data-etl/internal/adapter/mongo"
	"github.com/couchcryptid/cme-data-etl/internal/adapter/notify"
	"github.com/couchcryptid/cme-data-etl/internal/adapter/warehouse"
	"github.com/couchcryptid/cme-data-etl/internal/config"
	"github.com/couchcryptid/cme-data-etl/internal/domain"
	"github.com/couchcryptid/cme-data-etl/internal/observability"
	"github.com/couchcryptid/cme-data-etl/internal/pipeline"
)

const (
	closeTimeout = 5 * time.Second
	pushTimeout  = 10 * time.Second
)

// newMetrics is swapped in tests; the default registry rejects a second
// registration in the same process.
var newMetrics = observability.NewMetrics

func runJob(ctx context.Context, arg string, dryRun bool) error {
	date, err := domain.ParseProcessDate(arg)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := newMetrics()

	var clientOpts []donki.Option
	if cfg.MongoURI != "" {
		archive, err := mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
		if err != nil {
			logger.Warn("raw response archive unavailable, continuing without it", "error", err)
		} else {
			defer closeArchive(archive, logger)
			clientOpts = append(clientOpts, donki.WithArchiver(archive))
		}
	}
	extractor := donki.NewClient(cfg.DONKIBaseURL, cfg.DONKIAPIKey, cfg.DONKITimeout, logger, metrics, clientOpts...)

	loader, err := warehouse.Open(cfg.Warehouse, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := loader.Close(); err != nil {
			logger.Error("warehouse close error", "error", err)
		}
	}()

	if cfg.WarehouseCreateTable && !dryRun {
		if err := loader.EnsureTable(ctx); err != nil {
			return err
		}
	}

	sinks := notify.Multi{notify.NewLog(logger)}
	if len(cfg.NotifyKafkaBrokers) > 0 {
		kafkaNotifier := kafkaadapter.NewNotifier(cfg.NotifyKafkaBrokers, cfg.NotifyKafkaTopic, logger)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		sinks = append(sinks, kafkaNotifier)
	}

	transformer := pipeline.NewTransformer(cfg.Rules, logger, metrics)
	driver := pipeline.NewDriver(extractor, transformer, loader, sinks, logger, metrics, pipeline.WithDryRun(dryRun))

	logger.Info("run starting",
		"process_date", date.String(),
		"dry_run", dryRun,
		"warehouse", cfg.Warehouse.String(),
	)
	res, runErr := driver.Run(ctx, date)
	logger.Info("run finished",
		"process_date", date.String(),
		"state", res.State,
		"extracted", len(res.Extract.Records),
		"loaded", res.Load.Rows,
		"duration", res.Duration,
	)

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := metrics.Push(pushCtx, cfg.PushgatewayURL, cfg.PushJob); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}

	return runErr
}

func closeArchive(archive *mongoadapter.Archive, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := archive.Close(ctx); err != nil {
		logger.Error("archive close error", "error", err)
	}
}
