package service

import (
	"context"

	"go.uber.org/zap"

	"kcsatboard/pkg/cache"
	"kcsatboard/pkg/keyspace"
)

// DefaultSweepBatch 每批删除的 key 数
const DefaultSweepBatch = 100

// ViewMarkSweeper 批量删除浏览标记 (旧方案)。
// 标记本身带 24h TTL，正常情况下不需要启用。
type ViewMarkSweeper struct {
	store     cache.CounterStore
	batchSize int
	logger    *zap.Logger
}

// NewViewMarkSweeper 创建清理任务
func NewViewMarkSweeper(store cache.CounterStore, batchSize int, logger *zap.Logger) *ViewMarkSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatch
	}
	return &ViewMarkSweeper{store: store, batchSize: batchSize, logger: logger.Named("view_mark_sweeper")}
}

// SweepViewMarks 返回删除的 key 数
func (s *ViewMarkSweeper) SweepViewMarks(ctx context.Context) (int, error) {
	keys, err := s.store.ScanPrefix(ctx, keyspace.ViewMarkPattern(), int64(s.batchSize))
	if err != nil {
		s.logger.Warn("扫描浏览标记失败", zap.Error(err))
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(keys); start += s.batchSize {
		end := min(start+s.batchSize, len(keys))
		if err := s.store.Delete(ctx, keys[start:end]...); err != nil {
			s.logger.Warn("删除浏览标记失败", zap.Int("deleted", deleted), zap.Error(err))
			return deleted, err
		}
		deleted += end - start
	}
	s.logger.Info("浏览标记清理完成", zap.Int("deleted", deleted))
	return deleted, nil
}
