// Package redis adapts a RedisTimeSeries-enabled redis instance to the
// engine's Store port: per-key creation, single/bulk append, latest/range
// reads, and the popularity sorted set, per spec.md §4.2.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"pricecache/internal/core/cacheerr"
	"pricecache/internal/core/domain"
	"pricecache/internal/core/port"
)

// Store implements port.Store on top of a *redis.Client with the
// RedisTimeSeries module loaded.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func New(rdb *redis.Client, logger *slog.Logger) *Store {
	return &Store{rdb: rdb, logger: logger}
}

var _ port.Store = (*Store)(nil)

func (s *Store) CreateSeries(ctx context.Context, key string, retentionMs int64, policy port.DuplicatePolicy, labels map[string]string) error {
	args := []interface{}{"TS.CREATE", key, "RETENTION", retentionMs, "DUPLICATE_POLICY", string(policy)}
	if len(labels) > 0 {
		args = append(args, "LABELS")
		for k, v := range labels {
			args = append(args, k, v)
		}
	}

	err := s.rdb.Do(ctx, args...).Err()
	if err != nil && isAlreadyExists(err) {
		s.logger.Debug("series already exists", slog.String("key", key))
		return nil
	}
	return err
}

func (s *Store) AddPoint(ctx context.Context, key string, point domain.PricePoint) error {
	return s.rdb.Do(ctx, "TS.ADD", key, point.TimestampMs, point.PriceUSD.String()).Err()
}

func (s *Store) MultiAddPoints(ctx context.Context, points []port.PointWrite) error {
	if len(points) == 0 {
		return cacheerr.ErrNoPrices
	}

	args := make([]interface{}, 0, 1+3*len(points))
	args = append(args, "TS.MADD")
	for _, p := range points {
		args = append(args, p.Key, p.Point.TimestampMs, p.Point.PriceUSD.String())
	}

	return s.rdb.Do(ctx, args...).Err()
}

// GetLatest distinguishes a key with no series at all (an error on the
// wire, surfaced here as cacheerr.ErrSeriesNotFound so the engine treats it
// as a read miss worth lazy-admitting) from an existing series that simply
// has no points yet (an empty TS.GET reply, which stays (nil, nil)).
func (s *Store) GetLatest(ctx context.Context, key string) (*domain.PricePoint, error) {
	res, err := s.rdb.Do(ctx, "TS.GET", key).Result()
	if err != nil {
		if isDoesNotExist(err) {
			return nil, cacheerr.ErrSeriesNotFound
		}
		return nil, err
	}

	return parsePoint(res)
}

func (s *Store) RangeFirst(ctx context.Context, key string, fromMs, toMs int64) (*domain.PricePoint, error) {
	res, err := s.rdb.Do(ctx, "TS.RANGE", key, fromMs, toMs, "COUNT", 1).Result()
	if err != nil {
		if isDoesNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	rows, ok := res.([]interface{})
	if !ok || len(rows) == 0 {
		return nil, nil
	}

	return parsePoint(rows[0])
}

func (s *Store) PopIncr(ctx context.Context, setKey, member string, delta float64) error {
	return s.rdb.ZIncrBy(ctx, setKey, delta, member).Err()
}

func (s *Store) PopRangeRev(ctx context.Context, setKey string) ([]string, error) {
	return s.rdb.ZRevRange(ctx, setKey, 0, -1).Result()
}

func (s *Store) SetFlag(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *Store) GetFlag(ctx context.Context, key string) (string, error) {
	value, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return value, err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Pipeline() port.Pipeline {
	return &pipeline{pipe: s.rdb.Pipeline(), logger: s.logger}
}

type pipeline struct {
	pipe   redis.Pipeliner
	logger *slog.Logger
}

func (p *pipeline) CreateSeries(key string, retentionMs int64, policy port.DuplicatePolicy, labels map[string]string) {
	args := []interface{}{"TS.CREATE", key, "RETENTION", retentionMs, "DUPLICATE_POLICY", string(policy)}
	if len(labels) > 0 {
		args = append(args, "LABELS")
		for k, v := range labels {
			args = append(args, k, v)
		}
	}
	p.pipe.Do(context.Background(), args...)
}

func (p *pipeline) PopIncr(setKey, member string, delta float64) {
	p.pipe.ZIncrBy(context.Background(), setKey, delta, member)
}

// Exec never aborts on a per-command failure: a single malformed catalog
// entry must not block the rest of the batch's CreateSeries/PopIncr calls.
// "Already exists" is expected on a re-run and logged at debug; any other
// per-command error is logged and otherwise ignored. Exec only returns an
// error when the round trip itself failed (a transport error rather than a
// reply error from the server).
func (p *pipeline) Exec(ctx context.Context) error {
	cmds, err := p.pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		// A reply error from the server is per-command and handled below;
		// anything else means the round trip itself failed.
		var replyErr redis.Error
		if !errors.As(err, &replyErr) {
			return err
		}
	}

	for _, cmd := range cmds {
		cmdErr := cmd.Err()
		if cmdErr == nil {
			continue
		}
		if isAlreadyExists(cmdErr) {
			p.logger.Debug("pipeline command reported already-exists", slog.Any("error", cmdErr))
			continue
		}
		p.logger.Warn("pipeline command failed", slog.Any("error", cmdErr))
	}

	return nil
}

func isAlreadyExists(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func isDoesNotExist(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "unknown")
}

func parsePoint(raw interface{}) (*domain.PricePoint, error) {
	row, ok := raw.([]interface{})
	if !ok || len(row) < 2 {
		return nil, nil
	}

	ts, err := toInt64(row[0])
	if err != nil {
		return nil, err
	}

	value, err := toDecimal(row[1])
	if err != nil {
		return nil, err
	}

	return &domain.PricePoint{TimestampMs: ts, PriceUSD: value}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected value type %T", v)
	}
}
