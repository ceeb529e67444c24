package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/sunset-catalog-prep/internal/adapter/catalogfile"
	chadapter "github.com/couchcryptid/sunset-catalog-prep/internal/adapter/clickhouse"
	httpadapter "github.com/couchcryptid/sunset-catalog-prep/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sunset-catalog-prep/internal/adapter/kafka"
	"github.com/couchcryptid/sunset-catalog-prep/internal/config"
	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"github.com/couchcryptid/sunset-catalog-prep/internal/observability"
	"github.com/couchcryptid/sunset-catalog-prep/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extractor := catalogfile.NewExtractor(cfg.CatalogPath, cfg.IndexColumn, logger)
	loaders, closers, err := buildLoaders(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sinks", "error", err)
		return 1
	}
	defer closeAll(closers, logger)

	transformer := pipeline.NewTransformer(domain.Options{
		PathColumn: cfg.PathColumn,
		Shuffle:    cfg.Shuffle,
		Seed:       cfg.ShuffleSeed,
	}, logger)

	p := pipeline.New(extractor, transformer, loaders, logger, metrics, cfg.PrepInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// A zero interval prepares the catalog once and exits with the outcome.
	exitCode := 0
	if err := p.Run(ctx); err != nil {
		logger.Error("pipeline error", "error", err)
		exitCode = 1
	}
	if cfg.PrepInterval > 0 {
		<-ctx.Done()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return exitCode
}

// buildLoaders creates a loader for every configured sink. Sinks holding
// connections are also returned as closers.
func buildLoaders(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Loader, []io.Closer, error) {
	var loaders []pipeline.Loader
	var closers []io.Closer

	if cfg.OutputPath != "" {
		loaders = append(loaders, catalogfile.NewLoader(cfg.OutputPath, logger))
		logger.Info("file sink enabled", "path", cfg.OutputPath)
	}

	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, w)
		closers = append(closers, w)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	if cfg.ClickHouseEnabled {
		w, err := chadapter.NewWriter(ctx, cfg, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, nil, err
		}
		loaders = append(loaders, w)
		closers = append(closers, w)
		logger.Info("clickhouse sink enabled", "addr", cfg.ClickHouseAddr, "table", cfg.ClickHouseTable)
	}

	return loaders, closers, nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}
}
