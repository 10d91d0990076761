package port

import (
	"context"

	"pricecache/internal/core/domain"
)

// DuplicatePolicy mirrors the time-series store's duplicate-on-append
// policy. The engine only ever uses Last.
type DuplicatePolicy string

const Last DuplicatePolicy = "LAST"

// PointWrite is one element of a MultiAddPoints batch.
type PointWrite struct {
	Key   string
	Point domain.PricePoint
}

// Pipeline groups creation and popularity-increment calls issued against it
// into a single round trip when Exec is called.
type Pipeline interface {
	CreateSeries(key string, retentionMs int64, policy DuplicatePolicy, labels map[string]string)
	PopIncr(setKey, member string, delta float64)
	Exec(ctx context.Context) error
}

// Store is the thin semantic wrapper over the external time-series store
// plus its popularity sorted set, per spec.md §4.2.
type Store interface {
	CreateSeries(ctx context.Context, key string, retentionMs int64, policy DuplicatePolicy, labels map[string]string) error
	AddPoint(ctx context.Context, key string, point domain.PricePoint) error
	MultiAddPoints(ctx context.Context, points []PointWrite) error
	GetLatest(ctx context.Context, key string) (*domain.PricePoint, error)
	RangeFirst(ctx context.Context, key string, fromMs, toMs int64) (*domain.PricePoint, error)
	PopIncr(ctx context.Context, setKey, member string, delta float64) error
	PopRangeRev(ctx context.Context, setKey string) ([]string, error)
	Pipeline() Pipeline
	SetFlag(ctx context.Context, key, value string) error
	GetFlag(ctx context.Context, key string) (string, error)
	Ping(ctx context.Context) error
}

// ChainClient is the external chain's two operations the deriver needs.
type ChainClient interface {
	LatestLedgerCloseMs(ctx context.Context) (int64, error)
	StrictReceivePaths(ctx context.Context, sources []domain.Token, destAmount string) ([]domain.PathRecord, error)
	Ping(ctx context.Context) error
}

// CatalogFetcher walks the external asset catalog.
type CatalogFetcher interface {
	FetchAllTokens(ctx context.Context) ([]domain.Token, error)
}

// SnapshotRepository durably persists the catalog snapshot and the
// initialization flag, independent of the store's retention window.
type SnapshotRepository interface {
	SaveCatalogSnapshot(ctx context.Context, tokens []domain.Token) error
	MarkInitialized(ctx context.Context) error
	IsInitialized(ctx context.Context) (bool, error)
}
