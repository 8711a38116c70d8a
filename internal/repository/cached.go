package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	_ domain.Repository = (*SQLRepository)(nil)
	_ domain.Repository = (*CachedRepository)(nil)
)

// CachedRepository serves rebate and product lookups from a cache and
// invalidates entries when they are saved or deleted. Only present records
// are cached. Cache failures fall back to the wrapped repository.
type CachedRepository struct {
	domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewCached wraps repo with a read-through cache.
func NewCached(repo domain.Repository, cache domain.Cache, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedRepository{
		Repository: repo,
		cache:      cache,
		ttl:        ttl,
	}
}

func rebateKey(id string) string  { return "rebate:" + id }
func productKey(id string) string { return "product:" + id }

// GetRebate returns the cached rebate or loads it from the repository.
func (c *CachedRepository) GetRebate(ctx context.Context, rebateID string) (domain.Option[domain.Rebate], error) {
	return readThrough(ctx, c, rebateKey(rebateID), func() (domain.Option[domain.Rebate], error) {
		return c.Repository.GetRebate(ctx, rebateID)
	})
}

// GetProduct returns the cached product or loads it from the repository.
func (c *CachedRepository) GetProduct(ctx context.Context, productID string) (domain.Option[domain.Product], error) {
	return readThrough(ctx, c, productKey(productID), func() (domain.Option[domain.Product], error) {
		return c.Repository.GetProduct(ctx, productID)
	})
}

// StoreCalculationResult passes through; calculations are not cached.
func (c *CachedRepository) StoreCalculationResult(ctx context.Context, rebate domain.Rebate, amount decimal.Decimal) (domain.Rebate, error) {
	return c.Repository.StoreCalculationResult(ctx, rebate, amount)
}

// SaveRebate writes through and invalidates the cached rebate.
func (c *CachedRepository) SaveRebate(ctx context.Context, rebate *domain.Rebate) error {
	if err := c.Repository.SaveRebate(ctx, rebate); err != nil {
		return err
	}
	c.invalidate(ctx, rebateKey(rebate.Identifier))
	return nil
}

// DeleteRebate deletes and invalidates the cached rebate.
func (c *CachedRepository) DeleteRebate(ctx context.Context, rebateID string) error {
	err := c.Repository.DeleteRebate(ctx, rebateID)
	c.invalidate(ctx, rebateKey(rebateID))
	return err
}

// SaveProduct writes through and invalidates the cached product.
func (c *CachedRepository) SaveProduct(ctx context.Context, product *domain.Product) error {
	if err := c.Repository.SaveProduct(ctx, product); err != nil {
		return err
	}
	c.invalidate(ctx, productKey(product.Identifier))
	return nil
}

// DeleteProduct deletes and invalidates the cached product.
func (c *CachedRepository) DeleteProduct(ctx context.Context, productID string) error {
	err := c.Repository.DeleteProduct(ctx, productID)
	c.invalidate(ctx, productKey(productID))
	return err
}

func (c *CachedRepository) invalidate(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		slog.Warn("cache invalidation failed", "key", key, "error", err)
	}
}

func readThrough[T any](ctx context.Context, c *CachedRepository, key string, load func() (domain.Option[T], error)) (domain.Option[T], error) {
	if data, err := c.cache.Get(ctx, key); err != nil {
		slog.Warn("cache read failed", "key", key, "error", err)
	} else if data != nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return domain.Some(v), nil
		}
		slog.Warn("discarding undecodable cache entry", "key", key)
	}

	loaded, err := load()
	if err != nil || loaded.IsNone() {
		return loaded, err
	}

	v := loaded.OrElse(*new(T))
	if data, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			slog.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return loaded, nil
}
