package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joasgard/basisdesk/internal/domain"
)

// RateCache implements domain.RateCache using Redis hashes.
// Each asset's rate is stored as a hash at key "rate:{asset}" with fields
// "mark_price", "funding_apr" and "ts" (Unix nanosecond timestamp).
type RateCache struct {
	rdb *redis.Client
}

// NewRateCache creates a RateCache backed by the given Client.
func NewRateCache(c *Client) *RateCache {
	return &RateCache{rdb: c.Underlying()}
}

func rateKey(asset string) string {
	return "rate:" + asset
}

// SetRate stores the latest mark price and funding rate for an asset.
func (rc *RateCache) SetRate(ctx context.Context, rate domain.Rate) error {
	key := rateKey(rate.Asset)
	fields := map[string]interface{}{
		"mark_price":  strconv.FormatFloat(rate.MarkPrice, 'f', -1, 64),
		"funding_apr": strconv.FormatFloat(rate.FundingAPR, 'f', -1, 64),
		"ts":          strconv.FormatInt(rate.UpdatedAt.UnixNano(), 10),
	}
	if err := rc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set rate %s: %w", rate.Asset, err)
	}
	return nil
}

// GetRate retrieves the latest rate for an asset. It returns
// domain.ErrNotFound when the key does not exist.
func (rc *RateCache) GetRate(ctx context.Context, asset string) (domain.Rate, error) {
	vals, err := rc.rdb.HGetAll(ctx, rateKey(asset)).Result()
	if err != nil {
		return domain.Rate{}, fmt.Errorf("redis: get rate %s: %w", asset, err)
	}
	if len(vals) == 0 {
		return domain.Rate{}, domain.ErrNotFound
	}

	rate := domain.Rate{Asset: asset}

	markStr, ok := vals["mark_price"]
	if !ok {
		return domain.Rate{}, domain.ErrNotFound
	}
	if rate.MarkPrice, err = strconv.ParseFloat(markStr, 64); err != nil {
		return domain.Rate{}, fmt.Errorf("redis: parse mark price %s: %w", asset, err)
	}

	if aprStr, ok := vals["funding_apr"]; ok {
		if rate.FundingAPR, err = strconv.ParseFloat(aprStr, 64); err != nil {
			return domain.Rate{}, fmt.Errorf("redis: parse funding apr %s: %w", asset, err)
		}
	}

	if tsStr, ok := vals["ts"]; ok {
		tsNano, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return domain.Rate{}, fmt.Errorf("redis: parse ts %s: %w", asset, err)
		}
		rate.UpdatedAt = time.Unix(0, tsNano)
	}

	return rate, nil
}

// Compile-time interface check.
var _ domain.RateCache = (*RateCache)(nil)
