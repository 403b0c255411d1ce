// Command bastion runs the Bastion admin API as a Forge application. State
// lives in the grove store selected by BASTION_STORE_DRIVER, or in memory
// when none is set. A Redis lock is used for multi-process deployments and
// Prometheus metrics are served on a separate listener.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"

	"github.com/xraph/bastion/extension"
	"github.com/xraph/bastion/lock"
	"github.com/xraph/bastion/metrics"
	"github.com/xraph/bastion/store"
	"github.com/xraph/bastion/store/memory"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("bastion: startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.logger()

	if err := run(cfg, logger); err != nil {
		logger.Error("bastion: exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck // best effort on shutdown
	if cfg.StoreDriver != "" {
		logger.Info("using grove store", slog.String("driver", cfg.StoreDriver))
	}

	opts := []extension.ExtOption{
		extension.WithStore(st),
		extension.WithLogger(logger),
		extension.WithPlugin(collector),
		extension.WithConfig(extension.Config{
			Engine:      cfg.engineConfig(),
			SeedCatalog: cfg.SeedCatalog,
		}),
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close() //nolint:errcheck // best effort on shutdown
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		opts = append(opts, extension.WithLocker(lock.NewRedis(client)))
		logger.Info("using redis lock", slog.String("addr", cfg.RedisAddr))
	}

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", slog.String("error", err.Error()))
		}
	}()

	app := forge.New(
		forge.WithExtensions(extension.New(opts...)),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	logger.Info("bastion started", slog.String("metrics_addr", cfg.MetricsAddr))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(shutdownCtx); err != nil {
		logger.Warn("forge shutdown", slog.String("error", err.Error()))
	}
	return metricsSrv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config) (store.Store, error) {
	if cfg.StoreDriver == "" {
		return memory.New(), nil
	}
	return extension.OpenStore(ctx, cfg.StoreDriver, cfg.StoreDSN)
}
