package main

import (
	"context"
	"io"
	"log"
	"os"

	"tacosync/internal/catalog"
	"tacosync/internal/config"
	"tacosync/internal/google"
	"tacosync/internal/logging"
	"tacosync/internal/metrics"
	"tacosync/internal/pipeline"

	"github.com/google/uuid"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("run_id", uuid.NewString()).Logger()

	metrics.Register()
	defer func() {
		if cfg.Monitoring.PushgatewayURL == "" {
			return
		}
		if err := metrics.PushToGateway(cfg.Monitoring.PushgatewayURL, cfg.Monitoring.JobName); err != nil {
			logger.Error().Err(err).Msg("metrics push failed")
		}
	}()

	ctx := context.Background()

	sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile)
	if err != nil {
		return err
	}

	// One connection pool per tenant, created once and reused for the
	// run's lifetime.
	stores := make(map[string]*catalog.Store, len(cfg.Companies))
	for _, company := range cfg.Companies {
		store, err := catalog.NewStore(ctx, company.Database, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		stores[company.Name] = store
		logger.Info().Str("company", company.Name).Msg("catalog store connected")
	}

	runner := pipeline.NewRunner(cfg, sheets, logger)
	if err := runner.MountTenants(ctx, stores); err != nil {
		return err
	}

	if err := runner.Run(ctx); err != nil {
		return err
	}

	logger.Info().Msg("all tenants synced")
	return nil
}
