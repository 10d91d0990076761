package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"pricecache/internal/core/domain"
	"pricecache/internal/core/port"
)

// GetPrice is the read API's single entry point, per spec.md §4.5.4/§4.6.
// It never returns an error to the caller for read-path failures — those
// collapse to (nil, nil) — except lazy-admission failures (the derivation or
// the admitting AddPoint), which propagate as a non-nil error.
func (e *PriceCacheEngine) GetPrice(ctx context.Context, rawToken string) (*domain.TokenPriceData, error) {
	if e.store == nil {
		return nil, nil
	}

	token := domain.NormalizeToken(rawToken)
	key := tsKey(token.String())

	latest, err := e.store.GetLatest(ctx, key)
	if err != nil {
		return e.admit(ctx, token)
	}
	if latest == nil {
		return nil, nil
	}

	delta := e.lookupDelta(ctx, key, *latest)

	if err := e.store.PopIncr(ctx, PopularitySetKey, key, 1); err != nil {
		e.logger.Warn("popularity increment failed", slog.String("token", key), slog.Any("error", err))
	}

	return &domain.TokenPriceData{
		CurrentPrice:             latest.PriceUSD,
		PercentagePriceChange24h: delta,
	}, nil
}

// lookupDelta implements spec.md §4.5.4 steps 5-6: a sample within
// [latest.ts-24h, latest.ts-24h+1min] with a non-zero value yields a
// percentage delta; otherwise the delta is absent, never a sentinel zero.
func (e *PriceCacheEngine) lookupDelta(ctx context.Context, key string, latest domain.PricePoint) decimal.NullDecimal {
	dayAgo := latest.TimestampMs - OneDay.Milliseconds()
	old, err := e.store.RangeFirst(ctx, key, dayAgo, dayAgo+OneMinute.Milliseconds())
	if err != nil {
		e.logger.Warn("range lookup failed", slog.String("token", key), slog.Any("error", err))
		return decimal.NullDecimal{}
	}
	if old == nil || old.PriceUSD.IsZero() {
		return decimal.NullDecimal{}
	}

	delta := latest.PriceUSD.Sub(old.PriceUSD).Div(old.PriceUSD).Mul(decimal.NewFromInt(100))
	return decimal.NullDecimal{Decimal: delta, Valid: true}
}

// admit performs lazy admission of a previously-unseen (or unreadable)
// token on a read miss, per spec.md §4.5.3. Derivation failures propagate
// to the caller.
func (e *PriceCacheEngine) admit(ctx context.Context, token domain.Token) (*domain.TokenPriceData, error) {
	unlock := e.admissionLocks.Lock(token.String())
	defer unlock()

	key := tsKey(token.String())

	point, err := e.deriver.CalculatePriceInUSD(ctx, token)
	if err != nil {
		e.logger.Error("lazy admission derivation failed", slog.String("token", key), slog.Any("error", err))
		return nil, err
	}

	if err := e.store.CreateSeries(ctx, key, Retention.Milliseconds(), port.Last, map[string]string{PriceCacheLabel: PriceCacheLabel}); err != nil {
		e.logger.Warn("create series failed during admission", slog.String("token", key), slog.Any("error", err))
	}

	if err := e.store.PopIncr(ctx, PopularitySetKey, key, 1); err != nil {
		e.logger.Warn("popularity increment failed during admission", slog.String("token", key), slog.Any("error", err))
	}

	if err := e.store.AddPoint(ctx, key, point); err != nil {
		e.logger.Error("add point failed during admission", slog.String("token", key), slog.Any("error", err))
		return nil, err
	}

	return &domain.TokenPriceData{
		CurrentPrice:             point.PriceUSD,
		PercentagePriceChange24h: decimal.NullDecimal{},
	}, nil
}
