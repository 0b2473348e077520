package cli

import (
	"context"
	"fmt"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"

	mongoadapter "github.com/couchcryptid/cme-data-etl/internal/adapter/mongo"
	"github.com/couchcryptid/cme-data-etl/internal/adapter/warehouse"
	"github.com/couchcryptid/cme-data-etl/internal/config"
)

const pingTimeout = 10 * time.Second

// newCheckConfigCmd validates the environment without running a job.
func newCheckConfigCmd() *cobra.Command {
	var ping bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration without running the job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckConfig(cmd.Context(), ping)
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "also check that the warehouse and archive accept connections")

	return cmd
}

func runCheckConfig(ctx context.Context, ping bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	logger.Info("configuration valid",
		"donki_url", cfg.DONKIBaseURL,
		"warehouse", cfg.Warehouse.String(),
		"max_speed", cfg.Rules.MaxSpeed,
		"max_half_angle", cfg.Rules.MaxHalfAngle,
		"kafka_notifications", len(cfg.NotifyKafkaBrokers) > 0,
		"archive", cfg.MongoURI != "",
		"pushgateway", cfg.PushgatewayURL != "",
	)

	if !ping {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	loader, err := warehouse.Open(cfg.Warehouse, logger)
	if err != nil {
		return err
	}
	defer func() { _ = loader.Close() }()
	if err := loader.Ping(pingCtx); err != nil {
		return err
	}
	logger.Info("warehouse reachable", "table", loader.Table())

	if cfg.MongoURI != "" {
		archive, err := mongoadapter.Connect(pingCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
		if err != nil {
			return err
		}
		closeArchive(archive, logger)
	}
	return nil
}
