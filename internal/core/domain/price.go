package domain

import "github.com/shopspring/decimal"

// PricePoint is a single (close-time, price) sample, keyed implicitly by its
// time-series. TimestampMs is the close-time of the ledger used to derive
// the price, in milliseconds since epoch.
type PricePoint struct {
	TimestampMs int64
	PriceUSD    decimal.Decimal
}

// TokenPriceData is the shape returned by the read API: the current price
// plus the 24h percentage change, when derivable.
type TokenPriceData struct {
	CurrentPrice             decimal.Decimal     `json:"currentPrice"`
	PercentagePriceChange24h decimal.NullDecimal `json:"percentagePriceChange24h"`
}

// HealthResponse reports the reachability of the engine's backing stores.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Chain  string `json:"chain"`
}
