package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmacy-agent/internal/models"
)

const cachePrefix = "pharmacy:catalog:"

// MedicationSource is the catalog read surface shared by MedicationRepo and
// CachedMedicationRepo.
type MedicationSource interface {
	FindByName(ctx context.Context, name string) (*models.Medication, error)
	FindByBrand(ctx context.Context, name string) (*models.Medication, error)
	Search(ctx context.Context, filter, query string) ([]models.Medication, error)
	List(ctx context.Context) ([]models.Medication, error)
}

// CachedMedicationRepo is a Redis read-through cache in front of a catalog
// source. Only hits are cached; ErrNotFound always goes to the source.
// Redis failures are logged and the source answers instead.
type CachedMedicationRepo struct {
	next   MedicationSource
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedMedicationRepo(next MedicationSource, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedMedicationRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedMedicationRepo{next: next, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedMedicationRepo) FindByName(ctx context.Context, name string) (*models.Medication, error) {
	return cached(ctx, c, cacheKey("name", name), func() (*models.Medication, error) {
		return c.next.FindByName(ctx, name)
	})
}

func (c *CachedMedicationRepo) FindByBrand(ctx context.Context, name string) (*models.Medication, error) {
	return cached(ctx, c, cacheKey("brand", name), func() (*models.Medication, error) {
		return c.next.FindByBrand(ctx, name)
	})
}

func (c *CachedMedicationRepo) Search(ctx context.Context, filter, query string) ([]models.Medication, error) {
	key := cacheKey("search", filter, query)
	if filter == models.FilterAll {
		key = cacheKey("search", filter)
	}
	return cached(ctx, c, key, func() ([]models.Medication, error) {
		return c.next.Search(ctx, filter, query)
	})
}

func (c *CachedMedicationRepo) List(ctx context.Context) ([]models.Medication, error) {
	return cached(ctx, c, cacheKey("list"), func() ([]models.Medication, error) {
		return c.next.List(ctx)
	})
}

// Invalidate drops every cached catalog entry.
func (c *CachedMedicationRepo) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	_, err := FlushCatalogCache(ctx, c.redis)
	return err
}

// FlushCatalogCache deletes every catalog key in client and reports how
// many were removed.
func FlushCatalogCache(ctx context.Context, client *redis.Client) (int, error) {
	iter := client.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan catalog cache: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete catalog cache: %w", err)
	}
	return len(keys), nil
}

func cached[T any](ctx context.Context, c *CachedMedicationRepo, key string, load func() (T, error)) (T, error) {
	if c.redis == nil {
		return load()
	}

	var zero T
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(data, &v); jerr == nil {
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog cache read failed", "key", key, "error", err)
	}

	v, err := load()
	if err != nil {
		return zero, err
	}
	if data, err := json.Marshal(v); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}

// cacheKey normalizes lookups so "Advil", " advil " and "ADVIL" share an
// entry, matching the case-insensitive queries behind them.
func cacheKey(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(cachePrefix)
	b.WriteString(kind)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(strings.ToLower(strings.TrimSpace(p)))
	}
	return b.String()
}
