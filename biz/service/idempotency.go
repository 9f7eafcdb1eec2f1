package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kcsatboard/pkg/cache"
	"kcsatboard/pkg/keyspace"
)

// IdempotencyGuard 用短期锁拒绝窗口期内的重复创建请求。
// 锁从不主动释放，到期即可重试。
type IdempotencyGuard interface {
	// Acquire 拿到锁返回 true，锁已存在返回 false。
	Acquire(ctx context.Context, op keyspace.OperationKind, actorID, fingerprint string, ttl time.Duration) (bool, error)

	// TryAcquire 使用该操作配置的窗口，锁已存在时返回 ErrDuplicateSubmission。
	TryAcquire(ctx context.Context, op keyspace.OperationKind, actorID, fingerprint string) error
}

// LockWindows 各操作的防重窗口
type LockWindows map[keyspace.OperationKind]time.Duration

// DefaultLockWindows 帖子/评论/收藏 1 分钟，注册 5 分钟
func DefaultLockWindows() LockWindows {
	return LockWindows{
		keyspace.OpPost:         time.Minute,
		keyspace.OpComment:      time.Minute,
		keyspace.OpQuestionSave: time.Minute,
		keyspace.OpSignup:       5 * time.Minute,
	}
}

type idempotencyGuard struct {
	store   cache.CounterStore
	windows LockWindows
	metrics *Metrics
	logger  *zap.Logger
}

// NewIdempotencyGuard 创建幂等锁，windows 为 nil 时使用默认窗口
func NewIdempotencyGuard(store cache.CounterStore, windows LockWindows, metrics *Metrics, logger *zap.Logger) IdempotencyGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	merged := DefaultLockWindows()
	for op, ttl := range windows {
		if ttl > 0 {
			merged[op] = ttl
		}
	}
	return &idempotencyGuard{
		store:   store,
		windows: merged,
		metrics: metrics,
		logger:  logger.Named("idempotency"),
	}
}

// Fingerprint 对内容做 SHA1，多个字段之间用 0 字节分隔避免拼接歧义
func Fingerprint(parts ...string) string {
	h := sha1.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (g *idempotencyGuard) Acquire(ctx context.Context, op keyspace.OperationKind, actorID, fingerprint string, ttl time.Duration) (bool, error) {
	if actorID == "" {
		return false, fmt.Errorf("%w: empty actor", ErrInvalidArgument)
	}
	if ttl <= 0 {
		return false, fmt.Errorf("%w: lock ttl must be positive", ErrInvalidArgument)
	}
	key := keyspace.IdempotencyLock(op, actorID, fingerprint)
	// 值本身不参与判断，记录一个 token 方便排查
	ok, err := g.store.SetIfAbsent(ctx, key, uuid.NewString(), ttl)
	if err != nil {
		g.logger.Warn("获取幂等锁失败", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return ok, nil
}

func (g *idempotencyGuard) TryAcquire(ctx context.Context, op keyspace.OperationKind, actorID, fingerprint string) error {
	ttl, ok := g.windows[op]
	if !ok {
		return fmt.Errorf("%w: no lock window for %s", ErrInvalidArgument, op)
	}
	acquired, err := g.Acquire(ctx, op, actorID, fingerprint, ttl)
	if err != nil {
		return err
	}
	if !acquired {
		g.metrics.lockRejected(string(op))
		g.logger.Info("重复提交被拒绝", zap.String("operation", string(op)), zap.String("actor", actorID))
		return fmt.Errorf("%w: %s by %s", ErrDuplicateSubmission, op, actorID)
	}
	return nil
}
