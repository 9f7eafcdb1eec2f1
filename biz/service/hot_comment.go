package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"kcsatboard/biz/model"
	"kcsatboard/pkg/cache"
	"kcsatboard/pkg/keyspace"
)

const (
	DefaultHotCommentMinScore int64 = 2
	DefaultHotCommentLimit          = 3
)

// HotCommentSelector 根据实时票数挑选热评
type HotCommentSelector interface {
	// SelectHotComments 返回 score = up - down >= minScore 的评论，按分数降序，最多 limit 条。
	// 分数相同时保持 comments 的原始顺序。
	SelectHotComments(ctx context.Context, postID int64, comments []*model.Comment) ([]model.HotComment, error)
}

type hotCommentSelector struct {
	store    cache.CounterStore
	minScore int64
	limit    int
	logger   *zap.Logger
}

// NewHotCommentSelector 创建热评选择器，参数为 0 时使用默认值
// 取值范围由 config.Validate 保证。
func NewHotCommentSelector(store cache.CounterStore, minScore int64, limit int, logger *zap.Logger) HotCommentSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minScore == 0 {
		minScore = DefaultHotCommentMinScore
	}
	if limit == 0 {
		limit = DefaultHotCommentLimit
	}
	return &hotCommentSelector{store: store, minScore: minScore, limit: limit, logger: logger.Named("hot_comment")}
}

func (s *hotCommentSelector) SelectHotComments(ctx context.Context, postID int64, comments []*model.Comment) ([]model.HotComment, error) {
	scored := make([]model.HotComment, 0, len(comments))
	for _, c := range comments {
		if c == nil {
			continue
		}
		up, err := s.read(ctx, keyspace.CommentUpVote(c.ID))
		if err != nil {
			return s.fail(postID, err)
		}
		down, err := s.read(ctx, keyspace.CommentDownVote(c.ID))
		if err != nil {
			return s.fail(postID, err)
		}
		scored = append(scored, model.HotComment{Comment: *c, Up: up, Down: down, Score: up - down})
	}
	return rankHotComments(scored, s.minScore, s.limit), nil
}

// fail 缓存不可用时热评降级为空列表，损坏照常报错
func (s *hotCommentSelector) fail(postID int64, err error) ([]model.HotComment, error) {
	if errors.Is(err, cache.ErrUnavailable) {
		s.logger.Warn("缓存不可用，热评降级为空", zap.Int64("post_id", postID), zap.Error(err))
		return []model.HotComment{}, nil
	}
	s.logger.Error("读取评论票数失败", zap.Int64("post_id", postID), zap.Error(err))
	return nil, err
}

func (s *hotCommentSelector) read(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return parseCount(key, raw)
}

// rankHotComments 过滤、稳定降序排序并截断
func rankHotComments(scored []model.HotComment, minScore int64, limit int) []model.HotComment {
	kept := make([]model.HotComment, 0, len(scored))
	for _, hc := range scored {
		if hc.Score >= minScore {
			kept = append(kept, hc)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
