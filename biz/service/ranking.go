package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"kcsatboard/biz/model"
	"kcsatboard/biz/repo/pgrepo"
	"kcsatboard/pkg/cache"
	"kcsatboard/pkg/keyspace"
)

const (
	// DefaultRankingSize 排行榜槽位数
	DefaultRankingSize = 5
	// decaySeconds 时间项的权重，改动会改变所有历史排名
	decaySeconds = 45000.0
)

// QuestionSource 排行需要的题目读取能力，pgrepo.QuestionRepository 满足该接口
type QuestionSource interface {
	FindSharedCandidates(ctx context.Context, minShare int64) ([]*model.Question, error)
	GetQuestion(ctx context.Context, id int64) (*model.Question, error)
}

// RankingEngine 周期性计算题目热度排行并提供读取
type RankingEngine interface {
	// RecomputeRanking 计算并整体写入排行，返回写入的题目 id。
	// 同一进程内的多次调用串行执行。
	RecomputeRanking(ctx context.Context) ([]int64, error)

	// GetRankedQuestions 按槽位顺序读取，遇到第一个空槽位停止。
	// 槽位中的 id 无法在关系库中找到时返回 ErrEntityNotFound。
	GetRankedQuestions(ctx context.Context) ([]*model.Question, error)
}

type rankingEngine struct {
	store     cache.CounterStore
	questions QuestionSource
	publisher EventPublisher
	metrics   *Metrics
	size      int
	logger    *zap.Logger

	mu sync.Mutex // 保证 recompute 不重叠
}

// NewRankingEngine 创建排行引擎，size 为 0 时使用 5
// 取值范围由 config.Validate 保证。
func NewRankingEngine(store cache.CounterStore, questions QuestionSource, publisher EventPublisher, metrics *Metrics, size int, logger *zap.Logger) RankingEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size == 0 {
		size = DefaultRankingSize
	}
	return &rankingEngine{
		store:     store,
		questions: questions,
		publisher: publisher,
		metrics:   metrics,
		size:      size,
		logger:    logger.Named("ranking"),
	}
}

// Score = log10(share) + createdAt(UTC 秒) / 45000
func Score(shareCounter int64, createdAt time.Time) float64 {
	return math.Log10(float64(shareCounter)) + float64(createdAt.Unix())/decaySeconds
}

// rankQuestions 稳定降序，分数相同保持输入顺序
func rankQuestions(candidates []*model.Question, size int) []*model.Question {
	type scored struct {
		q     *model.Question
		score float64
	}
	list := make([]scored, 0, len(candidates))
	for _, q := range candidates {
		if q == nil || q.ShareCounter <= 0 {
			continue
		}
		list = append(list, scored{q: q, score: Score(q.ShareCounter, q.CreatedAt)})
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].score > list[j].score
	})
	if len(list) > size {
		list = list[:size]
	}
	out := make([]*model.Question, len(list))
	for i, s := range list {
		out[i] = s.q
	}
	return out
}

func (e *rankingEngine) RecomputeRanking(ctx context.Context) ([]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	ids, err := e.recompute(ctx)
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.metrics.rankingRun(result, time.Since(start).Seconds())
	return ids, err
}

func (e *rankingEngine) recompute(ctx context.Context) ([]int64, error) {
	candidates, err := e.questions.FindSharedCandidates(ctx, 0)
	if err != nil {
		e.logger.Error("读取排行候选失败", zap.Error(err))
		return nil, fmt.Errorf("service: load ranking candidates: %w", err)
	}

	top := rankQuestions(candidates, e.size)
	ids := make([]int64, len(top))
	slots := make(map[string]string, len(top))
	for i, q := range top {
		ids[i] = q.ID
		slots[keyspace.QuestionRank(i+1)] = strconv.FormatInt(q.ID, 10)
	}

	// 先算完整结果再一次性写入，读者看不到半截排行
	if err := e.store.SetAll(ctx, slots); err != nil {
		e.logger.Error("写入排行失败", zap.Error(err))
		return nil, err
	}

	e.logger.Info("排行已更新", zap.Int("candidates", len(candidates)), zap.Int64s("ids", ids))
	publish(ctx, e.publisher, e.logger, model.Event{Type: model.EventRankingUpdated, EntityIDs: ids})
	return ids, nil
}

func (e *rankingEngine) GetRankedQuestions(ctx context.Context) ([]*model.Question, error) {
	out := make([]*model.Question, 0, e.size)
	for pos := 1; pos <= e.size; pos++ {
		key := keyspace.QuestionRank(pos)
		raw, err := e.store.Get(ctx, key)
		if errors.Is(err, cache.ErrNotFound) {
			break
		} else if err != nil {
			return nil, err
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			e.logger.Error("排行槽位已损坏", zap.String("key", key), zap.String("value", raw))
			return nil, fmt.Errorf("%w: key %s holds %q", ErrCounterCorrupted, key, raw)
		}

		q, err := e.questions.GetQuestion(ctx, id)
		if errors.Is(err, pgrepo.ErrNotFound) {
			e.logger.Error("排行中的题目已不存在", zap.Int("position", pos), zap.Int64("question_id", id))
			return nil, fmt.Errorf("%w: question %d at rank %d", ErrEntityNotFound, id, pos)
		} else if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}
