package service

import (
	"context"
	"log/slog"

	"pricecache/internal/core/port"
)

// InitPriceCache fetches the asset catalog, creates one time series per
// token, seeds the popularity set, and marks the cache initialized.
// Initialization does not populate prices; the first UpdatePrices pass
// fills them, per spec.md §4.5.1.
func (e *PriceCacheEngine) InitPriceCache(ctx context.Context) error {
	tokens, err := e.catalog.FetchAllTokens(ctx)
	if err != nil {
		e.logger.Error("catalog fetch failed", slog.Any("error", err))
		return err
	}
	e.logger.Info("fetched catalog", slog.Int("tokens", len(tokens)))

	pipe := e.store.Pipeline()
	for _, tok := range tokens {
		key := tsKey(tok.String())
		pipe.CreateSeries(key, Retention.Milliseconds(), port.Last, map[string]string{PriceCacheLabel: PriceCacheLabel})
		pipe.PopIncr(PopularitySetKey, key, 1)
	}

	if err := pipe.Exec(ctx); err != nil {
		e.logger.Error("init pipeline failed", slog.Any("error", err))
		return err
	}

	if err := e.store.SetFlag(ctx, InitializedFlagKey, "true"); err != nil {
		e.logger.Error("failed to set initialized flag", slog.Any("error", err))
		return err
	}

	if e.snapshot != nil {
		if err := e.snapshot.SaveCatalogSnapshot(ctx, tokens); err != nil {
			e.logger.Warn("failed to persist catalog snapshot", slog.Any("error", err))
		}
		if err := e.snapshot.MarkInitialized(ctx); err != nil {
			e.logger.Warn("failed to persist initialized flag", slog.Any("error", err))
		}
	}

	e.logger.Info("price cache initialized", slog.Int("tokens", len(tokens)))
	return nil
}
