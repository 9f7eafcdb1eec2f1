package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kcsatboard/biz/model"
	"kcsatboard/pkg/cache"
	"kcsatboard/pkg/keyspace"
)

const (
	// DefaultHotThreshold 帖子 up 票达到该值即晋升热帖
	DefaultHotThreshold int64 = 20
	// DefaultMarkTTL 用户动作标记有效期，从第一次动作开始计算
	DefaultMarkTTL = 24 * time.Hour

	markValue = "1"

	// rollbackTimeout 回滚标记的独立超时
	rollbackTimeout = 2 * time.Second
)

// releaseMark 删除标记，请求 ctx 过期或取消后仍要执行
func releaseMark(ctx context.Context, store cache.CounterStore, key string) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	return store.Delete(rctx, key)
}

// EngagementService 浏览与投票计数引擎
type EngagementService interface {
	// InitCounters 实体创建后把计数器置为 "0"。
	InitCounters(ctx context.Context, kind model.EntityKind, id int64) error

	// RecordView 同一用户 24h 内只计一次浏览，返回当前浏览数。
	RecordView(ctx context.Context, postID int64, userID string) (int64, error)

	// RecordVote 同一用户对同一实体 24h 内只能投一票 (up/down 共用)，返回对应方向的当前票数。
	RecordVote(ctx context.Context, kind model.EntityKind, id int64, userID string, dir model.Direction) (int64, error)

	// GetCount 读取计数，缓存不可用时降级为 0。
	GetCount(ctx context.Context, kind model.EntityKind, id int64, metric model.Metric) (int64, error)

	// GetPostCounts 一次读取帖子的三个计数。
	GetPostCounts(ctx context.Context, postID int64) (model.Counts, error)
}

// HotMarker 关系库中把帖子标记为热帖的能力
type HotMarker interface {
	MarkHot(ctx context.Context, id int64) error
}

// EngagementOptions 引擎参数，零值使用默认值
type EngagementOptions struct {
	HotThreshold int64
	MarkTTL      time.Duration
}

type engagementService struct {
	store     cache.CounterStore
	posts     HotMarker
	publisher EventPublisher
	metrics   *Metrics
	threshold int64
	markTTL   time.Duration
	logger    *zap.Logger
}

// NewEngagementService 创建浏览/投票引擎
// publisher 与 metrics 可以为 nil。
func NewEngagementService(store cache.CounterStore, posts HotMarker, publisher EventPublisher, metrics *Metrics, opts EngagementOptions, logger *zap.Logger) EngagementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HotThreshold <= 0 {
		opts.HotThreshold = DefaultHotThreshold
	}
	if opts.MarkTTL <= 0 {
		opts.MarkTTL = DefaultMarkTTL
	}
	return &engagementService{
		store:     store,
		posts:     posts,
		publisher: publisher,
		metrics:   metrics,
		threshold: opts.HotThreshold,
		markTTL:   opts.MarkTTL,
		logger:    logger.Named("engagement"),
	}
}

// counterKey 计数器 key，评论没有浏览数
func counterKey(kind model.EntityKind, id int64, metric model.Metric) (string, error) {
	switch kind {
	case model.KindPost:
		switch metric {
		case model.MetricView:
			return keyspace.PostViewCount(id), nil
		case model.MetricUp:
			return keyspace.PostUpVote(id), nil
		case model.MetricDown:
			return keyspace.PostDownVote(id), nil
		}
	case model.KindComment:
		switch metric {
		case model.MetricUp:
			return keyspace.CommentUpVote(id), nil
		case model.MetricDown:
			return keyspace.CommentDownVote(id), nil
		}
	}
	return "", fmt.Errorf("%w: no %s counter for %s", ErrInvalidArgument, metric, kind)
}

func voteMarkKey(kind model.EntityKind, id int64, userID string) (string, error) {
	switch kind {
	case model.KindPost:
		return keyspace.PostVoteMark(id, userID), nil
	case model.KindComment:
		return keyspace.CommentVoteMark(id, userID), nil
	}
	return "", fmt.Errorf("%w: %s cannot be voted", ErrInvalidArgument, kind)
}

func (s *engagementService) InitCounters(ctx context.Context, kind model.EntityKind, id int64) error {
	var keys []string
	switch kind {
	case model.KindPost:
		keys = []string{keyspace.PostViewCount(id), keyspace.PostUpVote(id), keyspace.PostDownVote(id)}
	case model.KindComment:
		keys = []string{keyspace.CommentUpVote(id), keyspace.CommentDownVote(id)}
	default:
		return fmt.Errorf("%w: %s has no counters", ErrInvalidArgument, kind)
	}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = "0"
	}
	if err := s.store.SetAll(ctx, values); err != nil {
		s.logger.Warn("初始化计数器失败", zap.String("kind", string(kind)), zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *engagementService) RecordView(ctx context.Context, postID int64, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: empty user", ErrInvalidArgument)
	}
	countKey := keyspace.PostViewCount(postID)
	return s.record(ctx, string(model.KindPost), "view", keyspace.PostViewMark(postID, userID), countKey)
}

func (s *engagementService) RecordVote(ctx context.Context, kind model.EntityKind, id int64, userID string, dir model.Direction) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: empty user", ErrInvalidArgument)
	}
	markKey, err := voteMarkKey(kind, id, userID)
	if err != nil {
		return 0, err
	}
	countKey, err := counterKey(kind, id, model.Metric(dir))
	if err != nil {
		return 0, err
	}

	n, accepted, err := s.recordOnce(ctx, markKey, countKey)
	if err != nil {
		return 0, err
	}
	if !accepted {
		s.metrics.action(string(kind), "vote", "duplicate")
		s.logger.Debug("重复投票已忽略", zap.String("kind", string(kind)), zap.Int64("id", id), zap.String("user", userID))
		return n, nil
	}
	s.metrics.action(string(kind), "vote", "accepted")

	if kind == model.KindPost && dir == model.Up {
		s.checkHotPromotion(ctx, id, n)
	}
	return n, nil
}

func (s *engagementService) record(ctx context.Context, kind, action, markKey, countKey string) (int64, error) {
	n, accepted, err := s.recordOnce(ctx, markKey, countKey)
	if err != nil {
		return 0, err
	}
	if accepted {
		s.metrics.action(kind, action, "accepted")
	} else {
		s.metrics.action(kind, action, "duplicate")
		s.logger.Debug("重复动作已忽略", zap.String("mark", markKey))
	}
	return n, nil
}

// recordOnce 先抢占标记再自增，抢不到标记说明今天已经做过，只读当前值
func (s *engagementService) recordOnce(ctx context.Context, markKey, countKey string) (int64, bool, error) {
	created, err := s.store.SetIfAbsent(ctx, markKey, markValue, s.markTTL)
	if err != nil {
		s.logger.Warn("写入动作标记失败", zap.String("key", markKey), zap.Error(err))
		return 0, false, err
	}
	if !created {
		n, err := s.readStrict(ctx, countKey)
		return n, false, err
	}

	n, err := s.store.Increment(ctx, countKey)
	if err != nil {
		err = corruptedOr(countKey, err)
		if errors.Is(err, ErrCounterCorrupted) {
			s.logger.Error("计数器已损坏", zap.String("key", countKey), zap.Error(err))
		} else {
			s.logger.Warn("计数器自增失败", zap.String("key", countKey), zap.Error(err))
		}
		// 没有计数成功，释放标记让用户可以重试
		if delErr := releaseMark(ctx, s.store, markKey); delErr != nil {
			s.logger.Warn("回滚动作标记失败", zap.String("key", markKey), zap.Error(delErr))
		}
		return 0, false, err
	}
	return n, true, nil
}

// readStrict 缺失视为 0，后端故障原样返回
func (s *engagementService) readStrict(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	n, err := parseCount(key, raw)
	if err != nil {
		s.logger.Error("计数器已损坏", zap.String("key", key), zap.String("value", raw))
	}
	return n, err
}

// checkHotPromotion 第一个把 up 票推到阈值的请求负责写库
func (s *engagementService) checkHotPromotion(ctx context.Context, postID, up int64) {
	if up < s.threshold || s.posts == nil {
		return
	}
	hotKey := keyspace.PostHotMark(postID)
	created, err := s.store.SetIfAbsent(ctx, hotKey, markValue, 0)
	if err != nil {
		s.logger.Warn("写入热帖标记失败", zap.Int64("post_id", postID), zap.Error(err))
		return
	}
	if !created {
		return
	}

	if err := s.posts.MarkHot(ctx, postID); err != nil {
		s.logger.Error("热帖写库失败，下次 up 票重试", zap.Int64("post_id", postID), zap.Error(err))
		if delErr := releaseMark(ctx, s.store, hotKey); delErr != nil {
			s.logger.Warn("回滚热帖标记失败", zap.Int64("post_id", postID), zap.Error(delErr))
		}
		return
	}
	s.metrics.promoted()
	s.logger.Info("帖子晋升为热帖", zap.Int64("post_id", postID), zap.Int64("up", up))
	publish(ctx, s.publisher, s.logger, model.Event{Type: model.EventPostHot, EntityID: postID})
}

func (s *engagementService) GetCount(ctx context.Context, kind model.EntityKind, id int64, metric model.Metric) (int64, error) {
	key, err := counterKey(kind, id, metric)
	if err != nil {
		return 0, err
	}
	return s.readDegraded(ctx, key)
}

func (s *engagementService) GetPostCounts(ctx context.Context, postID int64) (model.Counts, error) {
	var c model.Counts
	var err error
	if c.Views, err = s.GetCount(ctx, model.KindPost, postID, model.MetricView); err != nil {
		return c, err
	}
	if c.Up, err = s.GetCount(ctx, model.KindPost, postID, model.MetricUp); err != nil {
		return c, err
	}
	c.Down, err = s.GetCount(ctx, model.KindPost, postID, model.MetricDown)
	return c, err
}

// readDegraded 读路径: 缓存不可用时返回 0，损坏仍然报错
func (s *engagementService) readDegraded(ctx context.Context, key string) (int64, error) {
	n, err := s.readStrict(ctx, key)
	if errors.Is(err, cache.ErrUnavailable) {
		s.metrics.degraded()
		s.logger.Warn("缓存不可用，计数降级为 0", zap.String("key", key), zap.Error(err))
		return 0, nil
	}
	return n, err
}
