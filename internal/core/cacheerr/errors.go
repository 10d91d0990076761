// Package cacheerr holds the price cache engine's error taxonomy as plain
// sentinel values, checked with errors.Is/errors.As the way the rest of the
// service checks errors.
package cacheerr

import "errors"

var (
	// ErrStoreUnavailable means no store handle is configured. The read
	// path collapses that case to none; no write path returns this error.
	ErrStoreUnavailable = errors.New("price cache: store unavailable")

	// ErrTimeout means a price derivation exceeded its timeout budget
	// (10s by default).
	ErrTimeout = errors.New("price cache: derivation timed out")

	// ErrNoPaths means the chain's path-finding query returned zero
	// candidate routes.
	ErrNoPaths = errors.New("price cache: no paths found")

	// ErrBadToken means a token identifier is not "XLM" nor a well-formed
	// "CODE:ISSUER" pair.
	ErrBadToken = errors.New("price cache: malformed token identifier")

	// ErrUpstream means a catalog or chain HTTP request failed.
	ErrUpstream = errors.New("price cache: upstream request failed")

	// ErrEmptyCatalog means the popularity set was empty when an update
	// pass started.
	ErrEmptyCatalog = errors.New("price cache: popularity set is empty")

	// ErrNoPrices means a batch produced zero successful derivations.
	ErrNoPrices = errors.New("price cache: batch produced no prices")

	// ErrSeriesNotFound means the requested key has no time series at all,
	// as opposed to a series that exists but holds no points yet.
	ErrSeriesNotFound = errors.New("price cache: series not found")
)
