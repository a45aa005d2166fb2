package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/sales"
)

// SaleCache is a best-effort read-through cache: Redis errors are logged
// and treated as a miss, Postgres stays the source of truth.
type SaleCache struct {
	rdb *redis.Client
	log *zap.Logger
}

var _ sales.Cache = (*SaleCache)(nil)

func NewSaleCache(rdb *redis.Client, logger *zap.Logger) *SaleCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleCache{rdb: rdb, log: logger}
}

func saleKey(id string) string { return fmt.Sprintf(KeySale, id) }

func (c *SaleCache) Get(ctx context.Context, id string) (*sales.Sale, bool) {
	b, err := c.rdb.Get(ctx, saleKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("sale cache get failed", zap.String("sale_id", id), zap.Error(err))
		}
		return nil, false
	}
	var s sales.Sale
	if err := json.Unmarshal(b, &s); err != nil {
		c.log.Warn("sale cache entry corrupt", zap.String("sale_id", id), zap.Error(err))
		return nil, false
	}
	return &s, true
}

func (c *SaleCache) Set(ctx context.Context, s *sales.Sale) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, saleKey(s.ID), b, TTLSaleCache).Err(); err != nil {
		c.log.Warn("sale cache set failed", zap.String("sale_id", s.ID), zap.Error(err))
	}
}

func (c *SaleCache) Delete(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, saleKey(id)).Err(); err != nil {
		c.log.Warn("sale cache evict failed", zap.String("sale_id", id), zap.Error(err))
	}
}
