package pgrepo

import (
	"context"

	"go.uber.org/zap"

	"kcsatboard/biz/dal/pgdal"
	"kcsatboard/biz/model"
)

type postRepository struct {
	db     DB
	dal    pgdal.PostDAL
	logger *zap.Logger
}

// NewPostRepository 创建 PostRepository
func NewPostRepository(db DB, dal pgdal.PostDAL, logger *zap.Logger) PostRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postRepository{db: db, dal: dal, logger: logger.Named("post_repo")}
}

func (r *postRepository) CreatePost(ctx context.Context, authorID, title, content string) (*model.Post, error) {
	return r.dal.ExecCreatePost(ctx, r.db, authorID, title, content)
}

func (r *postRepository) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	p, err := r.dal.ExecGetPostByID(ctx, r.db, id)
	return p, mapNotFound(err)
}

func (r *postRepository) MarkHot(ctx context.Context, id int64) error {
	if err := r.dal.ExecMarkHot(ctx, r.db, id); err != nil {
		return mapNotFound(err)
	}
	r.logger.Info("帖子已标记为热帖", zap.Int64("post_id", id))
	return nil
}
