package cache

import (
	"context"
	"time"
)

// CounterStore 对共享缓存暴露原子原语。
// 所有方法对并发调用者都是原子的，调用方不需要 读-改-写。
// 后端故障统一包装为 ErrUnavailable。
type CounterStore interface {
	// Get 读取字符串值，key 不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) (string, error)

	// SetAbsolute 无条件写入，不设置过期时间，用于初始化。
	SetAbsolute(ctx context.Context, key, value string) error

	// SetAll 一次性写入多个 key (MSET)，读者不会看到部分写入的结果。
	SetAll(ctx context.Context, values map[string]string) error

	// Increment 原子 +1，key 不存在时从 0 开始。
	// 存储的值不是整数时返回 ErrNotInteger。
	Increment(ctx context.Context, key string) (int64, error)

	// SetIfAbsent key 不存在时写入并返回 true，已存在返回 false。
	// ttl <= 0 表示不过期。
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete 删除 key，不存在的 key 会被忽略。
	Delete(ctx context.Context, keys ...string) error

	// ScanPrefix 用 SCAN 遍历匹配 pattern 的 key，仅用于批量清理。
	ScanPrefix(ctx context.Context, pattern string, count int64) ([]string, error)
}

// Cache 定义了一个通用的缓存操作接口，支持泛型。
// T 代表需要缓存的数据类型。
type Cache[T any] interface {
	// Get 从缓存中获取指定 key 的值。
	// 如果缓存未命中，应返回 ErrNotFound。
	// 如果缓存了空值，应返回 ErrNilValue。
	Get(ctx context.Context, key string) (T, error)

	// Set 将键值对存入缓存，并设置过期时间。
	// 实现应处理 TTL 和 TTL Jitter。
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// SetEmpty 缓存空值，防止缓存穿透。
	SetEmpty(ctx context.Context, key string) error

	// Delete 从缓存中删除指定的 key。
	Delete(ctx context.Context, key string) error
}
