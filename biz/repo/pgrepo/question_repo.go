package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"kcsatboard/biz/dal/pgdal"
	"kcsatboard/biz/model"
	"kcsatboard/pkg/cache"
	"kcsatboard/pkg/keyspace"
)

type questionRepository struct {
	db     DB
	dal    pgdal.QuestionDAL
	cache  cache.Cache[*model.Question] // 可以为 nil，表示不使用读缓存
	ttl    time.Duration
	logger *zap.Logger
}

// NewQuestionRepository 创建 QuestionRepository
// questionCache 为 nil 时所有读取直接回源。
func NewQuestionRepository(db DB, dal pgdal.QuestionDAL, questionCache cache.Cache[*model.Question], ttlSeconds int, logger *zap.Logger) QuestionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &questionRepository{
		db:     db,
		dal:    dal,
		cache:  questionCache,
		ttl:    time.Duration(ttlSeconds) * time.Second,
		logger: logger.Named("question_repo"),
	}
}

func (r *questionRepository) CreateQuestion(ctx context.Context, title string) (*model.Question, error) {
	return r.dal.ExecCreateQuestion(ctx, r.db, title)
}

// GetQuestion cache-aside 读取
func (r *questionRepository) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	key := keyspace.QuestionSnapshot(id)

	if r.cache != nil {
		q, err := r.cache.Get(ctx, key)
		switch {
		case err == nil:
			return q, nil
		case errors.Is(err, cache.ErrNilValue):
			return nil, ErrNotFound
		case !errors.Is(err, cache.ErrNotFound):
			// 缓存故障不影响回源
			r.logger.Warn("读取题目缓存失败，回源数据库", zap.String("key", key), zap.Error(err))
		}
	}

	q, err := r.dal.ExecGetQuestionByID(ctx, r.db, id)
	if err != nil {
		if errors.Is(err, pgdal.ErrNotFound) {
			r.fill(ctx, key, nil)
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.fill(ctx, key, q)
	return q, nil
}

// fill 回填缓存，q 为 nil 时写入空值占位
func (r *questionRepository) fill(ctx context.Context, key string, q *model.Question) {
	if r.cache == nil {
		return
	}
	var err error
	if q == nil {
		err = r.cache.SetEmpty(ctx, key)
	} else {
		err = r.cache.Set(ctx, key, q, r.ttl)
	}
	if err != nil {
		r.logger.Warn("回填题目缓存失败", zap.String("key", key), zap.Error(err))
	}
}

func (r *questionRepository) FindSharedCandidates(ctx context.Context, minShare int64) ([]*model.Question, error) {
	return r.dal.ExecFindSharedCandidates(ctx, r.db, minShare)
}

func (r *questionRepository) RecordSave(ctx context.Context, memberID string, questionID int64) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := r.dal.ExecIncrementShareCounter(ctx, tx, questionID); err != nil {
			return err
		}
		return r.dal.ExecAddToCollection(ctx, tx, memberID, questionID)
	})
	if err != nil {
		return fmt.Errorf("repo: 保存题目 %d 到收藏失败: %w", questionID, mapNotFound(err))
	}

	r.invalidate(ctx, questionID)
	return nil
}

func (r *questionRepository) DeleteQuestion(ctx context.Context, id int64) error {
	if err := r.dal.ExecDeleteQuestion(ctx, r.db, id); err != nil {
		return fmt.Errorf("repo: 删除题目 %d 失败: %w", id, mapNotFound(err))
	}
	r.invalidate(ctx, id)
	return nil
}

// invalidate 删除题目快照，下一次读取回源
func (r *questionRepository) invalidate(ctx context.Context, questionID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, keyspace.QuestionSnapshot(questionID)); err != nil {
		r.logger.Warn("失效题目缓存失败", zap.Int64("question_id", questionID), zap.Error(err))
	}
}
