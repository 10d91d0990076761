// Package service orchestrates the price cache engine: initialization,
// batched periodic updates, lazy admission on read miss, and the read path,
// per spec.md §4.5.
package service

import (
	"log/slog"
	"time"

	"pricecache/internal/core/deriver"
	"pricecache/internal/core/port"
)

const (
	// PriceCacheLabel is attached to every series at creation time so the
	// surrounding service can group-query by it.
	PriceCacheLabel = "ts:price"

	PopularitySetKey   = "token_counter"
	InitializedFlagKey = "price_cache_initialized"
	Retention          = 24 * time.Hour
	OneDay             = 24 * time.Hour
	OneMinute          = time.Minute

	// DefaultBatchUpdateDelay and DefaultTokenUpdateBatchSize are used when
	// the caller does not override them via New.
	DefaultBatchUpdateDelay     = 5 * time.Second
	DefaultTokenUpdateBatchSize = 150
)

// PriceCacheEngine orchestrates the price cache, per spec.md §4.5. The
// store is the single source of truth; the engine holds no in-process
// cache of prices.
type PriceCacheEngine struct {
	store    port.Store
	catalog  port.CatalogFetcher
	deriver  *deriver.Deriver
	snapshot port.SnapshotRepository
	logger   *slog.Logger

	admissionLocks *keyLock

	batchSize  int
	batchDelay time.Duration
}

// New builds a PriceCacheEngine. snapshot may be nil: the engine then
// relies solely on the store's InitializedFlagKey for bootstrap state, per
// spec.md §3 ("the engine does not read it; surrounding code uses it").
// A non-positive batchSize or negative batchDelay falls back to the
// Default* constants.
func New(store port.Store, catalog port.CatalogFetcher, drv *deriver.Deriver, snapshot port.SnapshotRepository, batchSize int, batchDelay time.Duration, logger *slog.Logger) *PriceCacheEngine {
	if batchSize <= 0 {
		batchSize = DefaultTokenUpdateBatchSize
	}
	if batchDelay < 0 {
		batchDelay = DefaultBatchUpdateDelay
	}
	return &PriceCacheEngine{
		store:          store,
		catalog:        catalog,
		deriver:        drv,
		snapshot:       snapshot,
		logger:         logger,
		admissionLocks: newKeyLock(),
		batchSize:      batchSize,
		batchDelay:     batchDelay,
	}
}

// tsKey is the time-series key for a normalized token: the key itself is
// the token identifier, with no prefix embedded (PriceCacheLabel is a
// label, not a key component, per spec.md §3).
func tsKey(token string) string {
	return token
}
