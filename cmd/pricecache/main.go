package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"pricecache/config"
	"pricecache/internal/adapters/catalog"
	"pricecache/internal/adapters/chain/horizon"
	httpadapter "pricecache/internal/adapters/handlers/http"
	"pricecache/internal/adapters/handlers/http/handler"
	"pricecache/internal/adapters/repository/postgres"
	redisstore "pricecache/internal/adapters/store/redis"
	"pricecache/internal/core/deriver"
	"pricecache/internal/core/port"
	"pricecache/internal/core/service"
	pkgconfig "pricecache/pkg/config"
)

func init() {
	initialLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(initialLogger)
}

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	deps, err := pkgconfig.NewDependencies(
		ctx,
		pkgconfig.WithLogger(cfg.Server.LogLvl),
		pkgconfig.WithPostgres(
			cfg.Postgres.User,
			cfg.Postgres.Pass,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.DBName,
		),
		pkgconfig.WithRedis(
			cfg.Redis.Addr,
			cfg.Redis.DB,
		),
		pkgconfig.WithHorizonClient(cfg.Chain.HorizonURL),
		pkgconfig.WithHTTPClient(10*time.Second),
	)
	if err != nil {
		slog.Error("failed to load dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.Close()
	slog.SetDefault(deps.Logger)

	store := redisstore.New(deps.Redis, deps.Logger)
	chain := horizon.New(deps.Horizon, deps.Logger)
	drv := deriver.New(chain, cfg.Cache.DerivationTimeout, deps.Logger)
	catalogFetcher := catalog.New(deps.HTTPClient, cfg.Catalog.BaseURL, cfg.Cache.InitialTokenCount, deps.Logger)
	snapshot := postgres.NewSnapshotRepository(deps.Postgres, deps.Logger)

	engine := service.New(store, catalogFetcher, drv, snapshot, cfg.Cache.TokenUpdateBatchSize, cfg.Cache.BatchUpdateDelay, deps.Logger)

	priceHandler := handler.NewPriceHandler(deps.Logger, engine)
	healthHandler := httpadapter.NewHealthHandler(store, chain, deps.Logger)
	srv := httpadapter.NewServer(deps.Logger, priceHandler, healthHandler)

	bootstrap(ctx, engine, store, snapshot, deps.Logger)
	go runUpdateLoop(ctx, engine, cfg.Cache.UpdateInterval, deps.Logger)

	run(ctx, cfg, srv)
}

// bootstrap calls InitPriceCache once, gated on the store's persisted
// initialization flag, per spec.md §3 ("surrounding code uses it to decide
// whether to call initialization on startup"). The store's flag is checked
// first since it's the cheaper, same-process call; if it was flushed (the
// time-series store has no retention guarantee on the flag key itself) the
// Postgres snapshot's durable flag still catches it, and the store flag is
// re-set from it so the next restart skips this fallback too.
func bootstrap(ctx context.Context, engine *service.PriceCacheEngine, store port.Store, snapshot port.SnapshotRepository, logger *slog.Logger) {
	flag, err := store.GetFlag(ctx, service.InitializedFlagKey)
	if err != nil {
		logger.Error("failed to read initialization flag", slog.Any("error", err))
	}
	if flag == "true" {
		logger.Info("price cache already initialized, skipping bootstrap")
		return
	}

	if snapshot != nil {
		initialized, err := snapshot.IsInitialized(ctx)
		if err != nil {
			logger.Error("failed to read durable initialization flag", slog.Any("error", err))
		} else if initialized {
			logger.Info("price cache already initialized per durable snapshot, skipping bootstrap")
			if err := store.SetFlag(ctx, service.InitializedFlagKey, "true"); err != nil {
				logger.Warn("failed to re-set store initialization flag", slog.Any("error", err))
			}
			return
		}
	}

	if err := engine.InitPriceCache(ctx); err != nil {
		logger.Error("price cache initialization failed", slog.Any("error", err))
	}
}

// runUpdateLoop invokes UpdatePrices on a fixed interval. Only one pass
// runs at a time: the engine does not serialize overlapping passes
// internally, so this loop waits for each pass to finish before
// scheduling the next tick, per spec.md §5.
func runUpdateLoop(ctx context.Context, engine *service.PriceCacheEngine, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.UpdatePrices(ctx); err != nil {
				logger.Error("price update pass failed", slog.Any("error", err))
			}
		}
	}
}

func run(ctx context.Context, cfg *config.Config, srv http.Handler) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	httpServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: srv,
	}

	go func() {
		slog.Info("server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Info("error listening and serving", "error", err)
		}
	}()

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		slog.Info("Gracefully shutting down...")

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Info("error shutting down http server", "error", err)
		}
	}()
	wg.Wait()
}
