// Package catalog walks the external asset catalog's paginated HTTP
// endpoint, per spec.md §4.1.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"pricecache/internal/core/domain"
)

const (
	// DefaultInitialTokenCount is the catalog walk's bound when the caller
	// does not override it, per spec.md §4.1/§6.
	DefaultInitialTokenCount = 1000

	pageDelay = 500 * time.Millisecond

	excludedUSDC = "USDC"
)

// Fetcher implements port.CatalogFetcher against a paginated asset
// explorer, ordered by 7-day volume descending.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	maxTokens int
	logger    *slog.Logger
}

func New(client *http.Client, baseURL string, maxTokens int, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxTokens <= 0 {
		maxTokens = DefaultInitialTokenCount
	}
	return &Fetcher{client: client, baseURL: strings.TrimRight(baseURL, "/"), maxTokens: maxTokens, logger: logger}
}

// FetchAllTokens walks the catalog starting from the seed list ["XLM"],
// stopping at maxTokens, an absent next link, or a failed request. Errors
// are logged; the walk ends gracefully with partial results.
func (f *Fetcher) FetchAllTokens(ctx context.Context) ([]domain.Token, error) {
	tokens := []domain.Token{domain.Token(domain.Native)}
	seen := map[domain.Token]struct{}{tokens[0]: {}}

	url := fmt.Sprintf("%s/explorer/public/asset?sort=volume7d&order=desc", f.baseURL)

	for url != "" && len(tokens) < f.maxTokens {
		page, err := f.fetchPage(ctx, url)
		if err != nil {
			f.logger.Error("catalog page fetch failed", slog.Any("error", err), slog.String("url", url))
			break
		}

		for _, rec := range page.Embedded.Records {
			tok, ok := recordToken(rec)
			if !ok {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
			if len(tokens) >= f.maxTokens {
				break
			}
		}

		if page.Links.Next == nil || page.Links.Next.Href == "" {
			break
		}
		url = resolveNext(f.baseURL, page.Links.Next.Href)

		select {
		case <-ctx.Done():
			return tokens, nil
		case <-time.After(pageDelay):
		}
	}

	return tokens, nil
}

func recordToken(rec domain.CatalogRecord) (domain.Token, bool) {
	if rec.Asset == domain.Native || rec.Asset == excludedUSDC {
		return "", false
	}

	if rec.TomlInfo != nil && rec.TomlInfo.Code != "" && rec.TomlInfo.Issuer != "" {
		return domain.Token(rec.TomlInfo.Code + ":" + rec.TomlInfo.Issuer), true
	}

	parts := strings.Split(rec.Asset, "-")
	if len(parts) >= 2 && parts[0] != excludedUSDC && parts[0] != domain.Native {
		return domain.Token(parts[0] + ":" + parts[1]), true
	}

	return "", false
}

func resolveNext(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return base + href
}

func (f *Fetcher) fetchPage(ctx context.Context, url string) (*domain.CatalogPage, error) {
	var page domain.CatalogPage

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("catalog returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&page)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 1)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	return &page, nil
}
