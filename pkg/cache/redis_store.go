package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore 实现了 CounterStore 接口
type redisStore struct {
	client *redis.Client
	prefix string // 所有 key 的统一前缀，用于多环境共用一个 Redis
}

// NewRedisStore 创建一个新的 Redis 计数存储
func NewRedisStore(client *redis.Client, prefix string) (*redisStore, error) {
	if client == nil {
		return nil, errors.New("cache: redis client cannot be nil")
	}
	return &redisStore{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *redisStore) key(k string) string {
	return r.prefix + k
}

// Get 实现 CounterStore 的 Get 方法
func (r *redisStore) Get(ctx context.Context, key string) (string, error) {
	full := r.key(key)
	val, err := r.client.Get(ctx, full).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	} else if err != nil {
		return "", unavailable("get", full, err)
	}
	return val, nil
}

// SetAbsolute 实现 CounterStore 的 SetAbsolute 方法
func (r *redisStore) SetAbsolute(ctx context.Context, key, value string) error {
	full := r.key(key)
	if err := r.client.Set(ctx, full, value, 0).Err(); err != nil {
		return unavailable("set", full, err)
	}
	return nil
}

// SetAll 实现 CounterStore 的 SetAll 方法
func (r *redisStore) SetAll(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	pairs := make([]any, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, r.key(k), v)
	}
	if err := r.client.MSet(ctx, pairs...).Err(); err != nil {
		return unavailable("mset", fmt.Sprintf("%d keys", len(values)), err)
	}
	return nil
}

// Increment 实现 CounterStore 的 Increment 方法
func (r *redisStore) Increment(ctx context.Context, key string) (int64, error) {
	full := r.key(key)
	n, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		if isNotInteger(err) {
			return 0, fmt.Errorf("cache: redis incr failed for key %s: %w", full, ErrNotInteger)
		}
		return 0, unavailable("incr", full, err)
	}
	return n, nil
}

// SetIfAbsent 实现 CounterStore 的 SetIfAbsent 方法
func (r *redisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	full := r.key(key)
	if ttl < 0 {
		ttl = 0
	}
	ok, err := r.client.SetNX(ctx, full, value, ttl).Result()
	if err != nil {
		return false, unavailable("setnx", full, err)
	}
	return ok, nil
}

// Delete 实现 CounterStore 的 Delete 方法
func (r *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	// 如果 key 不存在，Del 操作也会成功返回
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return unavailable("del", strings.Join(full, ","), err)
	}
	return nil
}

// ScanPrefix 实现 CounterStore 的 ScanPrefix 方法
// 返回的 key 已去掉 prefix，可以直接交给 Delete。
func (r *redisStore) ScanPrefix(ctx context.Context, pattern string, count int64) ([]string, error) {
	match := r.key(pattern)
	var keys []string
	iter := r.client.Scan(ctx, 0, match, count).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan", match, err)
	}
	return keys, nil
}

// --- 辅助函数 ---

func unavailable(op, key string, err error) error {
	return fmt.Errorf("cache: redis %s failed for key %s: %w: %w", op, key, ErrUnavailable, err)
}

// isNotInteger 识别 "ERR value is not an integer or out of range"
func isNotInteger(err error) bool {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return strings.Contains(rerr.Error(), "not an integer")
	}
	return false
}

// 确保 redisStore 实现了 CounterStore 接口
var _ CounterStore = (*redisStore)(nil)
