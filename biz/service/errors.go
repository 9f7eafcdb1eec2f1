package service

import (
	"errors"
	"fmt"
	"strconv"

	"kcsatboard/pkg/cache"
)

var (
	// ErrCacheUnavailable 缓存后端故障，写操作直接拒绝，读操作可降级
	ErrCacheUnavailable = cache.ErrUnavailable

	// ErrDuplicateSubmission 幂等锁已被占用，本次创建操作没有发生
	ErrDuplicateSubmission = errors.New("service: duplicate submission")

	// ErrCounterCorrupted 计数器里存的不是合法的非负整数
	ErrCounterCorrupted = errors.New("service: counter corrupted")

	// ErrEntityNotFound 引用的实体在关系库中不存在
	ErrEntityNotFound = errors.New("service: entity not found")

	// ErrInvalidArgument 参数组合不合法 (例如给评论记浏览)
	ErrInvalidArgument = errors.New("service: invalid argument")
)

// parseCount 把缓存中的十进制字符串解析为计数
func parseCount(key, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: key %s holds %q", ErrCounterCorrupted, key, raw)
	}
	return n, nil
}

// corruptedOr 把 INCR 的非整数错误转换为 ErrCounterCorrupted
func corruptedOr(key string, err error) error {
	if errors.Is(err, cache.ErrNotInteger) {
		return fmt.Errorf("%w: key %s: %w", ErrCounterCorrupted, key, err)
	}
	return err
}
