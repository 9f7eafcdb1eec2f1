package pgdal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kcsatboard/biz/model"
)

type postDAL struct{}

// NewPostDAL 创建 PostDAL
func NewPostDAL() PostDAL {
	return &postDAL{}
}

func (d *postDAL) ExecCreatePost(ctx context.Context, q Querier, authorID, title, content string) (*model.Post, error) {
	const query = `
		INSERT INTO posts (author_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING id, author_id, title, content, is_hot_post, created_at`
	var p model.Post
	err := q.QueryRow(ctx, query, authorID, title, content).
		Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content, &p.IsHotPost, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("pgdal: 创建帖子失败: %w", err)
	}
	return &p, nil
}

func (d *postDAL) ExecGetPostByID(ctx context.Context, q Querier, id int64) (*model.Post, error) {
	const query = `
		SELECT id, author_id, title, content, is_hot_post, created_at
		FROM posts WHERE id = $1`
	var p model.Post
	err := q.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content, &p.IsHotPost, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("pgdal: 查询帖子 %d 失败: %w", id, err)
	}
	return &p, nil
}

// ExecMarkHot 幂等: 已经是 true 的再写一次 true 不会有副作用
func (d *postDAL) ExecMarkHot(ctx context.Context, q Querier, id int64) error {
	tag, err := q.Exec(ctx, `UPDATE posts SET is_hot_post = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgdal: 标记热帖 %d 失败: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
