package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dmehra2102/orderly/internal/order/application"
	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/pkg/cache"
)

// CachedListing caches ListAll results. FindByID always goes to the wrapped
// catalog so order pricing never sees a stale price.
type CachedListing struct {
	log   *slog.Logger
	next  application.Catalog
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedListing(log *slog.Logger, next application.Catalog, c cache.Cache, ttl time.Duration) *CachedListing {
	return &CachedListing{log: log, next: next, cache: c, ttl: ttl}
}

func (c *CachedListing) FindByID(ctx context.Context, productID string) (domain.Product, bool, error) {
	return c.next.FindByID(ctx, productID)
}

func (c *CachedListing) ListAll(ctx context.Context) ([]domain.Product, error) {
	key := c.cache.GenerateKey("catalog", "all")

	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "catalog cache read failed", "err", err)
	} else if raw != "" {
		if products, err := decodeProducts(raw); err == nil {
			return products, nil
		}
		c.log.WarnContext(ctx, "catalog cache entry unreadable", "key", key)
	}

	products, err := c.next.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := encodeProducts(products); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.log.WarnContext(ctx, "catalog cache write failed", "err", err)
		}
	}
	return products, nil
}

func encodeProducts(products []domain.Product) (string, error) {
	dtos := make([]productDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, productDTO{ID: p.ID, Name: p.Name, Price: application.MoneyDTO(p.Price)})
	}
	data, err := json.Marshal(dtos)
	return string(data), err
}

func decodeProducts(raw string) ([]domain.Product, error) {
	var dtos []productDTO
	if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(dtos))
	for _, dto := range dtos {
		p, err := toProduct(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
