package service

import (
	"context"
	"log/slog"
	"time"

	"pricecache/internal/core/cacheerr"
	"pricecache/internal/core/domain"
	"pricecache/internal/core/port"
	"pricecache/internal/core/service/workerpool"
)

// UpdatePrices reads the popularity set in descending score order,
// partitions it into TokenUpdateBatchSize-sized batches, and derives each
// batch's prices in parallel before a single atomic MultiAddPoints call,
// per spec.md §4.5.2. Only one UpdatePrices pass may run at a time; the
// engine does not serialize this internally — callers must not overlap
// passes.
func (e *PriceCacheEngine) UpdatePrices(ctx context.Context) error {
	tokens, err := e.store.PopRangeRev(ctx, PopularitySetKey)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return cacheerr.ErrEmptyCatalog
	}

	for start := 0; start < len(tokens); start += e.batchSize {
		end := start + e.batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		if err := e.updateBatch(ctx, batch); err != nil {
			return err
		}

		if end < len(tokens) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.batchDelay):
			}
		}
	}

	return nil
}

func (e *PriceCacheEngine) updateBatch(ctx context.Context, batchKeys []string) error {
	pool := workerpool.New(len(batchKeys), e.deriver)
	outCh := pool.Start(ctx)

	for _, key := range batchKeys {
		pool.SubmitJob(domain.Token(key))
	}
	pool.CloseAndWait()

	points := make([]port.PointWrite, 0, len(batchKeys))
	for res := range outCh {
		if res.Err != nil {
			e.logger.Warn("price derivation failed",
				slog.String("token", string(res.Token)),
				slog.Any("error", res.Err))
			continue
		}
		points = append(points, port.PointWrite{Key: string(res.Token), Point: res.Point})
	}

	if len(points) == 0 {
		return cacheerr.ErrNoPrices
	}

	return e.store.MultiAddPoints(ctx, points)
}
