// Package horizon adapts the Stellar Horizon REST API (via the official
// horizonclient SDK) to the engine's ChainClient port: the latest ledger's
// close time, and strictReceivePaths route queries.
package horizon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/txnbuild"

	"pricecache/internal/core/domain"
)

// Client wraps horizonclient.Client to satisfy port.ChainClient.
type Client struct {
	hc     *horizonclient.Client
	logger *slog.Logger
}

func New(hc *horizonclient.Client, logger *slog.Logger) *Client {
	return &Client{hc: hc, logger: logger}
}

// LatestLedgerCloseMs fetches the latest ledger and returns its close time
// in milliseconds since epoch.
func (c *Client) LatestLedgerCloseMs(ctx context.Context) (int64, error) {
	page, err := c.hc.Ledgers(horizonclient.LedgerRequest{
		Order: horizonclient.OrderDesc,
		Limit: 1,
	})
	if err != nil {
		return 0, fmt.Errorf("fetch latest ledger: %w", err)
	}
	if len(page.Embedded.Records) == 0 {
		return 0, fmt.Errorf("fetch latest ledger: no records returned")
	}

	return page.Embedded.Records[0].ClosedAt.UnixMilli(), nil
}

// StrictReceivePaths calls the chain's path-finding endpoint for the given
// source assets and a fixed USDC destination receiving destAmount units.
func (c *Client) StrictReceivePaths(ctx context.Context, sources []domain.Token, destAmount string) ([]domain.PathRecord, error) {
	sourceAssets := make([]string, 0, len(sources))
	for _, src := range sources {
		sourceAssets = append(sourceAssets, assetParam(toTxAsset(src)))
	}
	usdc := usdcAsset().(txnbuild.CreditAsset)

	page, err := c.hc.StrictReceivePaths(horizonclient.PathsRequest{
		SourceAssets:           strings.Join(sourceAssets, ","),
		DestinationAssetType:   horizonclient.AssetType4,
		DestinationAssetCode:   usdc.Code,
		DestinationAssetIssuer: usdc.Issuer,
		DestinationAmount:      destAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("strictReceivePaths: %w", err)
	}

	records := make([]domain.PathRecord, 0, len(page.Embedded.Records))
	for _, rec := range page.Embedded.Records {
		code := rec.SourceAssetCode
		if rec.SourceAssetType == "native" {
			code = domain.Native
		}
		records = append(records, domain.PathRecord{
			SourceAssetType: rec.SourceAssetType,
			SourceAssetCode: code,
			SourceAmount:    rec.SourceAmount,
		})
	}

	return records, nil
}

// Ping verifies the Horizon endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.hc.Ledgers(horizonclient.LedgerRequest{Order: horizonclient.OrderDesc, Limit: 1})
	return err
}

func toTxAsset(token domain.Token) txnbuild.Asset {
	if token.IsNative() {
		return txnbuild.NativeAsset{}
	}
	code, issuer, _ := token.SplitAsset()
	return txnbuild.CreditAsset{Code: code, Issuer: issuer}
}

func usdcAsset() txnbuild.Asset {
	return txnbuild.CreditAsset{Code: "USDC", Issuer: "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"}
}

// assetParam formats a txnbuild.Asset as the "source_assets" CSV element
// Horizon expects: "native" or "CODE:ISSUER".
func assetParam(a txnbuild.Asset) string {
	if a.IsNative() {
		return "native"
	}
	credit := a.(txnbuild.CreditAsset)
	return credit.Code + ":" + credit.Issuer
}
