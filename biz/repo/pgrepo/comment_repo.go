package pgrepo

import (
	"context"

	"kcsatboard/biz/dal/pgdal"
	"kcsatboard/biz/model"
)

type commentRepository struct {
	db  DB
	dal pgdal.CommentDAL
}

// NewCommentRepository 创建 CommentRepository
func NewCommentRepository(db DB, dal pgdal.CommentDAL) CommentRepository {
	return &commentRepository{db: db, dal: dal}
}

func (r *commentRepository) CreateComment(ctx context.Context, postID int64, authorID, content string) (*model.Comment, error) {
	return r.dal.ExecCreateComment(ctx, r.db, postID, authorID, content)
}

func (r *commentRepository) ListByPost(ctx context.Context, postID int64) ([]*model.Comment, error) {
	return r.dal.ExecListCommentsByPost(ctx, r.db, postID)
}
