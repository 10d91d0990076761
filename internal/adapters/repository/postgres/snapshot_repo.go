package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricecache/internal/core/domain"
)

// SnapshotRepository durably persists the catalog snapshot and the
// initialization flag, independent of the time-series store's retention
// window. The engine's hot path never reads this table back; it exists so
// "are we initialized" and "what did the catalog look like" survive a
// store flush, per SPEC_FULL.md §3.
type SnapshotRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewSnapshotRepository(db *pgxpool.Pool, logger *slog.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, logger: logger}
}

func (r *SnapshotRepository) SaveCatalogSnapshot(ctx context.Context, tokens []domain.Token) error {
	batch := &pgx.Batch{}
	for _, tok := range tokens {
		batch.Queue(
			`INSERT INTO catalog_snapshot (token) VALUES ($1) ON CONFLICT (token) DO NOTHING`,
			string(tok),
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range tokens {
		if _, err := br.Exec(); err != nil {
			r.logger.Error("failed to persist catalog token", slog.Any("error", err))
		}
	}

	return nil
}

func (r *SnapshotRepository) MarkInitialized(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO price_cache_state (key, value) VALUES ('price_cache_initialized', 'true')
		ON CONFLICT (key) DO UPDATE SET value = 'true'
	`)
	if err != nil {
		r.logger.Error("failed to persist initialization flag", slog.Any("error", err))
	}
	return err
}

func (r *SnapshotRepository) IsInitialized(ctx context.Context) (bool, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM price_cache_state WHERE key = 'price_cache_initialized'`).Scan(&value)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "true", nil
}
