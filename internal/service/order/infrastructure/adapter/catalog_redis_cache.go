package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/service/order/domain/port"
)

// CachedCatalog 在 GormCatalog 前加一层 Redis 缓存，只缓存标题和价格
type CachedCatalog struct {
	origin *GormCatalog
	rdb    goredis.UniversalClient
	ttl    time.Duration
}

func NewCachedCatalog(origin *GormCatalog, rdb goredis.UniversalClient, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCatalog{origin: origin, rdb: rdb, ttl: ttl}
}

type cachedListing struct {
	Title string `json:"title"`
	Price string `json:"price"`
}

func productCacheKey(productID int64) string {
	return fmt.Sprintf("tomato_mall:product:{%d}", productID)
}

func (c *CachedCatalog) GetProduct(ctx context.Context, productID int64) (port.ProductSnapshot, error) {
	key := productCacheKey(productID)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached cachedListing
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			if snap, ok := cached.toSnapshot(productID); ok {
				return withAvailability(ctx, c.origin.stock, snap)
			}
		}
	} else if err != goredis.Nil {
		// 缓存不可用时直接回源
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("product cache read failed")
	}

	snap, err := c.origin.getListing(ctx, productID)
	if err != nil {
		return port.ProductSnapshot{}, err
	}
	if raw, err := json.Marshal(cachedListing{Title: snap.Title, Price: snap.Price.String()}); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("product cache write failed")
		}
	}
	return withAvailability(ctx, c.origin.stock, snap)
}

// Invalidate 商品改价后调用
func (c *CachedCatalog) Invalidate(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, productCacheKey(productID)).Err()
}

func (l cachedListing) toSnapshot(productID int64) (port.ProductSnapshot, bool) {
	price, err := decimal.NewFromString(l.Price)
	if err != nil {
		return port.ProductSnapshot{}, false
	}
	return port.ProductSnapshot{ProductID: productID, Title: l.Title, Price: price}, true
}
