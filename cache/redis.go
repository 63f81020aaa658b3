package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"preorder-svc/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	confirmGuardTTL = 2 * time.Minute
	orderCacheTTL   = 30 * time.Second
)

func InitRedis(cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// AcquireConfirmGuard takes a short-lived exclusive claim on a transaction
// reference before the confirmation workflow runs. It narrows the window
// where a webhook delivery and a client poll race each other; the ledger's
// uniqueness constraint remains the durable guarantee.
func AcquireConfirmGuard(ctx context.Context, rdb *redis.Client, txRef string) (bool, error) {
	key := fmt.Sprintf("confirm:%s", txRef)
	return rdb.SetNX(ctx, key, "1", confirmGuardTTL).Result()
}

// ReleaseConfirmGuard drops the claim after the workflow finishes, so a
// legitimate retry after a persistence failure does not wait out the TTL.
func ReleaseConfirmGuard(ctx context.Context, rdb *redis.Client, txRef string) error {
	key := fmt.Sprintf("confirm:%s", txRef)
	return rdb.Del(ctx, key).Err()
}

// GetOrder returns a cached track-order projection, if present.
func GetOrder(ctx context.Context, rdb *redis.Client, txRef string) ([]byte, error) {
	key := fmt.Sprintf("order:%s", txRef)
	return rdb.Get(ctx, key).Bytes()
}

// SetOrder caches a track-order projection for a short time; order status
// changes out of band, so the TTL stays small.
func SetOrder(ctx context.Context, rdb *redis.Client, txRef string, order interface{}, ttl time.Duration) error {
	key := fmt.Sprintf("order:%s", txRef)
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = orderCacheTTL
	}
	return rdb.Set(ctx, key, data, ttl).Err()
}

// Guard adapts a Redis client to the workflow's replay-guard interface.
type Guard struct {
	rdb *redis.Client
}

func NewGuard(rdb *redis.Client) *Guard {
	return &Guard{rdb: rdb}
}

func (g *Guard) Acquire(ctx context.Context, txRef string) (bool, error) {
	return AcquireConfirmGuard(ctx, g.rdb, txRef)
}

func (g *Guard) Release(ctx context.Context, txRef string) error {
	return ReleaseConfirmGuard(ctx, g.rdb, txRef)
}

// OrderCache adapts a Redis client to the tracker's projection-cache
// interface.
type OrderCache struct {
	rdb *redis.Client
}

func NewOrderCache(rdb *redis.Client) *OrderCache {
	return &OrderCache{rdb: rdb}
}

func (c *OrderCache) GetOrder(ctx context.Context, txRef string) ([]byte, error) {
	return GetOrder(ctx, c.rdb, txRef)
}

func (c *OrderCache) SetOrder(ctx context.Context, txRef string, order interface{}, ttl time.Duration) error {
	return SetOrder(ctx, c.rdb, txRef, order, ttl)
}
