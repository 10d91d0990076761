// Package deriver computes a single token's USD price via the chain's
// path-finding endpoint, per spec.md §4.3.
package deriver

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pricecache/internal/core/cacheerr"
	"pricecache/internal/core/domain"
	"pricecache/internal/core/port"
)

// USDCCode and USDCIssuer name the quote asset that is the destination of
// every strictReceivePaths query. The deriver passes only the amount; the
// horizon adapter sets the same asset as the destination on its side.
const (
	USDCCode         = "USDC"
	USDCIssuer       = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
	USDReceiveAmount = "500"

	// DefaultTimeout is the hard per-token derivation budget used when the
	// caller does not override it.
	DefaultTimeout = 10 * time.Second
)

var usdReceiveValue = decimal.RequireFromString(USDReceiveAmount)

// Deriver computes USD prices for individual tokens, racing the
// computation against a hard timeout.
type Deriver struct {
	chain   port.ChainClient
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a Deriver. A non-positive timeout falls back to
// DefaultTimeout.
func New(chain port.ChainClient, timeout time.Duration, logger *slog.Logger) *Deriver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Deriver{chain: chain, timeout: timeout, logger: logger}
}

type result struct {
	point domain.PricePoint
	err   error
}

// CalculatePriceInUSD derives token's USD price and the ledger close time it
// was observed at, per spec.md §4.3. It fails with one of the sentinel
// errors in cacheerr: ErrTimeout, ErrNoPaths, ErrBadToken, ErrUpstream.
func (d *Deriver) CalculatePriceInUSD(ctx context.Context, token domain.Token) (domain.PricePoint, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resCh := make(chan result, 1)
	go func() {
		point, err := d.compute(ctx, token)
		resCh <- result{point, err}
	}()

	select {
	case <-ctx.Done():
		return domain.PricePoint{}, cacheerr.ErrTimeout
	case r := <-resCh:
		return r.point, r.err
	}
}

func (d *Deriver) compute(ctx context.Context, token domain.Token) (domain.PricePoint, error) {
	sources, err := sourceSet(token)
	if err != nil {
		return domain.PricePoint{}, err
	}

	closeMs, err := d.chain.LatestLedgerCloseMs(ctx)
	if err != nil {
		d.logger.Error("failed to fetch latest ledger", slog.Any("error", err), slog.String("token", string(token)))
		return domain.PricePoint{}, cacheerr.ErrUpstream
	}

	records, err := d.chain.StrictReceivePaths(ctx, sources, USDReceiveAmount)
	if err != nil {
		d.logger.Error("strictReceivePaths failed", slog.Any("error", err), slog.String("token", string(token)))
		return domain.PricePoint{}, cacheerr.ErrUpstream
	}
	if len(records) == 0 {
		return domain.PricePoint{}, cacheerr.ErrNoPaths
	}

	minSourceAmount, err := minSourceAmount(records, primaryCode(sources))
	if err != nil {
		return domain.PricePoint{}, err
	}
	if minSourceAmount.IsZero() {
		return domain.PricePoint{}, cacheerr.ErrNoPaths
	}

	price := usdReceiveValue.Div(minSourceAmount)

	return domain.PricePoint{
		TimestampMs: closeMs,
		PriceUSD:    price,
	}, nil
}

// sourceSet builds the candidate source-asset list per spec.md §4.3 step 1:
// native is always present as a fallback hop.
func sourceSet(token domain.Token) ([]domain.Token, error) {
	if token.IsNative() {
		return []domain.Token{domain.Token(domain.Native)}, nil
	}

	if _, _, ok := token.SplitAsset(); !ok {
		return nil, cacheerr.ErrBadToken
	}

	return []domain.Token{token, domain.Token(domain.Native)}, nil
}

// primaryCode returns the asset code of the primary (non-fallback) source.
func primaryCode(sources []domain.Token) string {
	primary := sources[0]
	if primary.IsNative() {
		return domain.Native
	}
	code, _, _ := primary.SplitAsset()
	return code
}

// minSourceAmount reproduces the reference implementation's fold exactly,
// per spec.md §9: the accumulator seeds at the first overall record's
// source amount, then folds a min over the subset filtered by matching
// source asset code. An empty filtered set leaves the accumulator at the
// first overall record's amount — an intentional fallback, not a bug.
func minSourceAmount(records []domain.PathRecord, primaryCode string) (decimal.Decimal, error) {
	acc, err := decimal.NewFromString(records[0].SourceAmount)
	if err != nil {
		return decimal.Decimal{}, cacheerr.ErrUpstream
	}

	for _, rec := range records {
		if rec.SourceAssetCode != primaryCode {
			continue
		}
		amount, err := decimal.NewFromString(rec.SourceAmount)
		if err != nil {
			continue
		}
		if amount.LessThan(acc) {
			acc = amount
		}
	}

	return acc, nil
}
