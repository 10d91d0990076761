package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricecache/internal/core/cacheerr"
	"pricecache/internal/core/deriver"
	"pricecache/internal/core/domain"
	"pricecache/internal/core/port"
)

// fakeStore is an in-memory port.Store good enough to exercise the engine's
// orchestration without a real RedisTimeSeries instance.
type fakeStore struct {
	mu sync.Mutex

	series     map[string]bool
	points     map[string][]domain.PricePoint // append-only, ascending TimestampMs
	popularity map[string]float64
	flags      map[string]string

	getLatestErr error
	addPointErr  error
	multiAddErr  error
}

var _ port.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		series:     make(map[string]bool),
		points:     make(map[string][]domain.PricePoint),
		popularity: make(map[string]float64),
		flags:      make(map[string]string),
	}
}

func (f *fakeStore) CreateSeries(ctx context.Context, key string, retentionMs int64, policy port.DuplicatePolicy, labels map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[key] = true
	return nil
}

func (f *fakeStore) AddPoint(ctx context.Context, key string, point domain.PricePoint) error {
	if f.addPointErr != nil {
		return f.addPointErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[key] = append(f.points[key], point)
	return nil
}

func (f *fakeStore) MultiAddPoints(ctx context.Context, points []port.PointWrite) error {
	if f.multiAddErr != nil {
		return f.multiAddErr
	}
	if len(points) == 0 {
		return cacheerr.ErrNoPrices
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		f.points[p.Key] = append(f.points[p.Key], p.Point)
	}
	return nil
}

// GetLatest mirrors the real redis adapter's distinction: a key with no
// series at all errors with cacheerr.ErrSeriesNotFound (a read miss worth
// admitting), while an existing series with no points yet returns
// (nil, nil).
func (f *fakeStore) GetLatest(ctx context.Context, key string) (*domain.PricePoint, error) {
	if f.getLatestErr != nil {
		return nil, f.getLatestErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.series[key] {
		return nil, cacheerr.ErrSeriesNotFound
	}
	pts := f.points[key]
	if len(pts) == 0 {
		return nil, nil
	}
	latest := pts[len(pts)-1]
	return &latest, nil
}

func (f *fakeStore) RangeFirst(ctx context.Context, key string, fromMs, toMs int64) (*domain.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.points[key] {
		if p.TimestampMs >= fromMs && p.TimestampMs <= toMs {
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) PopIncr(ctx context.Context, setKey, member string, delta float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.popularity[member] += delta
	return nil
}

func (f *fakeStore) PopRangeRev(ctx context.Context, setKey string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.popularity))
	for k := range f.popularity {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return f.popularity[keys[i]] > f.popularity[keys[j]] })
	return keys, nil
}

func (f *fakeStore) Pipeline() port.Pipeline {
	return &fakePipeline{store: f}
}

func (f *fakeStore) SetFlag(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[key] = value
	return nil
}

func (f *fakeStore) GetFlag(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags[key], nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

type fakePipeline struct {
	store *fakeStore
	ops   []func()
}

func (p *fakePipeline) CreateSeries(key string, retentionMs int64, policy port.DuplicatePolicy, labels map[string]string) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		p.store.series[key] = true
		p.store.mu.Unlock()
	})
}

func (p *fakePipeline) PopIncr(setKey, member string, delta float64) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		p.store.popularity[member] += delta
		p.store.mu.Unlock()
	})
}

func (p *fakePipeline) Exec(ctx context.Context) error {
	for _, op := range p.ops {
		op()
	}
	return nil
}

var _ port.CatalogFetcher = (*fakeCatalog)(nil)

type fakeCatalog struct {
	tokens []domain.Token
	err    error
}

func (f *fakeCatalog) FetchAllTokens(ctx context.Context) ([]domain.Token, error) {
	return f.tokens, f.err
}

var _ port.ChainClient = (*fakeChainClient)(nil)

type fakeChainClient struct {
	closeMs int64
	records []domain.PathRecord
	err     error
}

func (f *fakeChainClient) LatestLedgerCloseMs(ctx context.Context) (int64, error) {
	return f.closeMs, f.err
}

func (f *fakeChainClient) StrictReceivePaths(ctx context.Context, sources []domain.Token, destAmount string) ([]domain.PathRecord, error) {
	return f.records, f.err
}

func (f *fakeChainClient) Ping(ctx context.Context) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitPriceCache_SeedsSeriesAndPopularity(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{tokens: []domain.Token{domain.Token(domain.Native), domain.Token("USDC:GISSUER")}}
	engine := New(store, catalog, nil, nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	err := engine.InitPriceCache(context.Background())
	require.NoError(t, err)

	require.True(t, store.series["XLM"])
	require.True(t, store.series["USDC:GISSUER"])
	require.Equal(t, float64(1), store.popularity["XLM"])
	require.Equal(t, "true", store.flags[InitializedFlagKey])
}

func TestInitPriceCache_CatalogFetchFails(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{err: errors.New("catalog unreachable")}
	engine := New(store, catalog, nil, nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	err := engine.InitPriceCache(context.Background())
	require.Error(t, err)
	require.Empty(t, store.flags[InitializedFlagKey])
}

func TestGetPrice_Miss_ReturnsNilWithoutError(t *testing.T) {
	store := newFakeStore()
	store.series["XLM"] = true
	engine := New(store, &fakeCatalog{}, deriver.New(&fakeChainClient{}, deriver.DefaultTimeout, testLogger()), nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	// Token has an existing series but no points recorded yet: GetLatest
	// returns (nil, nil), which must short-circuit to a nil result, not
	// trigger lazy admission.
	data, err := engine.GetPrice(context.Background(), "XLM")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestGetPrice_UnknownSeries_TriggersLazyAdmission(t *testing.T) {
	store := newFakeStore()
	chain := &fakeChainClient{
		closeMs: 555,
		records: []domain.PathRecord{{SourceAssetCode: domain.Native, SourceAmount: "25"}},
	}
	engine := New(store, &fakeCatalog{}, deriver.New(chain, deriver.DefaultTimeout, testLogger()), nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	// No series was ever created for this token, so GetLatest errors with
	// cacheerr.ErrSeriesNotFound, matching the real adapter's TS.GET
	// behavior on a key that does not exist. That must route into lazy
	// admission rather than collapse to a plain miss.
	data, err := engine.GetPrice(context.Background(), "XLM")
	require.NoError(t, err)
	require.NotNil(t, data)
	require.True(t, data.CurrentPrice.Equal(decimal.RequireFromString("20")))
	require.True(t, store.series["XLM"])
	require.Equal(t, float64(1), store.popularity["XLM"])
}

func TestGetPrice_Hit_IncrementsPopularityAndComputesDelta(t *testing.T) {
	store := newFakeStore()
	key := "XLM"
	store.series[key] = true
	store.points[key] = []domain.PricePoint{
		{TimestampMs: 0, PriceUSD: decimal.RequireFromString("1.00")},
		{TimestampMs: OneDay.Milliseconds(), PriceUSD: decimal.RequireFromString("1.50")},
	}
	engine := New(store, &fakeCatalog{}, nil, nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	data, err := engine.GetPrice(context.Background(), "XLM")
	require.NoError(t, err)
	require.NotNil(t, data)
	require.True(t, data.CurrentPrice.Equal(decimal.RequireFromString("1.50")))
	require.True(t, data.PercentagePriceChange24h.Valid)
	require.True(t, data.PercentagePriceChange24h.Decimal.Equal(decimal.RequireFromString("50")))
	require.Equal(t, float64(1), store.popularity[key])
}

func TestGetPrice_LazyAdmissionOnReadError(t *testing.T) {
	store := newFakeStore()
	store.getLatestErr = errors.New("store blip")
	chain := &fakeChainClient{
		closeMs: 555,
		records: []domain.PathRecord{{SourceAssetCode: domain.Native, SourceAmount: "25"}},
	}
	engine := New(store, &fakeCatalog{}, deriver.New(chain, deriver.DefaultTimeout, testLogger()), nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	data, err := engine.GetPrice(context.Background(), "XLM")
	require.NoError(t, err)
	require.NotNil(t, data)
	require.True(t, data.CurrentPrice.Equal(decimal.RequireFromString("20")))
	require.False(t, data.PercentagePriceChange24h.Valid)
}

func TestGetPrice_LazyAdmissionDerivationFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.getLatestErr = errors.New("store blip")
	chain := &fakeChainClient{err: errors.New("horizon down")}
	engine := New(store, &fakeCatalog{}, deriver.New(chain, deriver.DefaultTimeout, testLogger()), nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	data, err := engine.GetPrice(context.Background(), "XLM")
	require.Error(t, err)
	require.Nil(t, data)
}

func TestUpdatePrices_EmptyPopularitySetIsError(t *testing.T) {
	store := newFakeStore()
	engine := New(store, &fakeCatalog{}, deriver.New(&fakeChainClient{}, deriver.DefaultTimeout, testLogger()), nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	err := engine.UpdatePrices(context.Background())
	require.ErrorIs(t, err, cacheerr.ErrEmptyCatalog)
}

func TestUpdatePrices_DerivesAndWritesBatch(t *testing.T) {
	store := newFakeStore()
	store.popularity["XLM"] = 5
	store.popularity["USDC:GISSUER"] = 3

	chain := &fakeChainClient{
		closeMs: 999,
		records: []domain.PathRecord{{SourceAssetCode: domain.Native, SourceAmount: "50"}},
	}
	engine := New(store, &fakeCatalog{}, deriver.New(chain, deriver.DefaultTimeout, testLogger()), nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	err := engine.UpdatePrices(context.Background())
	require.NoError(t, err)

	require.Len(t, store.points["XLM"], 1)
	require.Len(t, store.points["USDC:GISSUER"], 1)
}

func TestUpdatePrices_AllDerivationsFailIsNoPrices(t *testing.T) {
	store := newFakeStore()
	store.popularity["XLM"] = 5

	chain := &fakeChainClient{err: errors.New("horizon down")}
	engine := New(store, &fakeCatalog{}, deriver.New(chain, deriver.DefaultTimeout, testLogger()), nil, DefaultTokenUpdateBatchSize, DefaultBatchUpdateDelay, testLogger())

	err := engine.UpdatePrices(context.Background())
	require.ErrorIs(t, err, cacheerr.ErrNoPrices)
}
