package pgdal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kcsatboard/biz/model"
)

type commentDAL struct{}

// NewCommentDAL 创建 CommentDAL
func NewCommentDAL() CommentDAL {
	return &commentDAL{}
}

func (d *commentDAL) ExecCreateComment(ctx context.Context, q Querier, postID int64, authorID, content string) (*model.Comment, error) {
	const query = `
		INSERT INTO comments (post_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, post_id, author_id, content, created_at`
	var c model.Comment
	err := q.QueryRow(ctx, query, postID, authorID, content).
		Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("pgdal: 创建评论失败: %w", err)
	}
	return &c, nil
}

// ExecListCommentsByPost 按 id 升序返回，热评的稳定排序依赖这个顺序
func (d *commentDAL) ExecListCommentsByPost(ctx context.Context, q Querier, postID int64) ([]*model.Comment, error) {
	const query = `
		SELECT id, post_id, author_id, content, created_at
		FROM comments WHERE post_id = $1 ORDER BY id`
	rows, err := q.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("pgdal: 查询帖子 %d 的评论失败: %w", postID, err)
	}
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Comment, error) {
		var c model.Comment
		err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt)
		return &c, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgdal: 读取评论失败: %w", err)
	}
	return comments, nil
}
