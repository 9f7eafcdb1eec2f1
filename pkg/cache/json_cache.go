package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// NilValuePlaceholder 用于在 Redis 中标记空值，以区分 key 不存在和 key 存在但值为空。
	NilValuePlaceholder = "__NIL_VALUE__"
	// NilValueTTL 设置空值的较短 TTL，防止长时间缓存不存在的数据。
	NilValueTTL = 5 * time.Minute
	// DefaultTTLJitterPercent 在基础 TTL 上增加 0% 到 10% 的随机时间。
	DefaultTTLJitterPercent = 0.1
)

// jsonCache 以 JSON 形式缓存任意结构体，实现 Cache[T]
type jsonCache[T any] struct {
	client *redis.Client
	prefix string
}

// NewJSONCache 创建一个 JSON 序列化的 Redis 缓存
func NewJSONCache[T any](client *redis.Client, prefix string) (Cache[T], error) {
	if client == nil {
		return nil, errors.New("cache: redis client cannot be nil")
	}
	return &jsonCache[T]{client: client, prefix: prefix}, nil
}

func (c *jsonCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	full := c.prefix + key
	val, err := c.client.Get(ctx, full).Result()
	if errors.Is(err, redis.Nil) {
		return zero, ErrNotFound
	} else if err != nil {
		return zero, unavailable("get", full, err)
	}

	if val == NilValuePlaceholder {
		return zero, ErrNilValue
	}

	var out T
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		// 数据损坏，删掉让下次回源
		c.client.Del(ctx, full)
		return zero, fmt.Errorf("cache: failed to unmarshal data for key %s: %w", full, err)
	}
	return out, nil
}

func (c *jsonCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	full := c.prefix + key
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal data for key %s: %w", full, err)
	}
	if err := c.client.Set(ctx, full, data, addJitter(ttl)).Err(); err != nil {
		return unavailable("set", full, err)
	}
	return nil
}

func (c *jsonCache[T]) SetEmpty(ctx context.Context, key string) error {
	full := c.prefix + key
	if err := c.client.Set(ctx, full, NilValuePlaceholder, addJitter(NilValueTTL)).Err(); err != nil {
		return unavailable("set nil value", full, err)
	}
	return nil
}

func (c *jsonCache[T]) Delete(ctx context.Context, key string) error {
	full := c.prefix + key
	if err := c.client.Del(ctx, full).Err(); err != nil {
		return unavailable("del", full, err)
	}
	return nil
}

// addJitter 为 TTL 增加随机偏移，防止缓存雪崩
func addJitter(baseTTL time.Duration) time.Duration {
	if baseTTL <= 0 {
		return baseTTL // 0 或负数 TTL 通常表示不过期或立即过期，不添加 jitter
	}
	jitter := time.Duration(rand.Float64() * DefaultTTLJitterPercent * float64(baseTTL))
	return baseTTL + jitter
}
