package pgdal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kcsatboard/biz/model"
)

type questionDAL struct{}

// NewQuestionDAL 创建 QuestionDAL
func NewQuestionDAL() QuestionDAL {
	return &questionDAL{}
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	var qu model.Question
	if err := row.Scan(&qu.ID, &qu.Title, &qu.ShareCounter, &qu.CreatedAt); err != nil {
		return nil, err
	}
	return &qu, nil
}

func (d *questionDAL) ExecCreateQuestion(ctx context.Context, q Querier, title string) (*model.Question, error) {
	const query = `
		INSERT INTO questions (title) VALUES ($1)
		RETURNING id, title, share_counter, created_at`
	qu, err := scanQuestion(q.QueryRow(ctx, query, title))
	if err != nil {
		return nil, fmt.Errorf("pgdal: 创建题目失败: %w", err)
	}
	return qu, nil
}

func (d *questionDAL) ExecGetQuestionByID(ctx context.Context, q Querier, id int64) (*model.Question, error) {
	const query = `SELECT id, title, share_counter, created_at FROM questions WHERE id = $1`
	qu, err := scanQuestion(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("pgdal: 查询题目 %d 失败: %w", id, err)
	}
	return qu, nil
}

// ExecFindSharedCandidates 返回 share_counter > minShare 的题目，按 id 升序
func (d *questionDAL) ExecFindSharedCandidates(ctx context.Context, q Querier, minShare int64) ([]*model.Question, error) {
	const query = `
		SELECT id, title, share_counter, created_at
		FROM questions WHERE share_counter > $1 ORDER BY id`
	rows, err := q.Query(ctx, query, minShare)
	if err != nil {
		return nil, fmt.Errorf("pgdal: 查询排行候选失败: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Question, error) {
		return scanQuestion(row)
	})
	if err != nil {
		return nil, fmt.Errorf("pgdal: 读取排行候选失败: %w", err)
	}
	return list, nil
}

func (d *questionDAL) ExecIncrementShareCounter(ctx context.Context, q Querier, id int64) error {
	tag, err := q.Exec(ctx, `UPDATE questions SET share_counter = share_counter + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgdal: 增加题目 %d 分享数失败: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *questionDAL) ExecAddToCollection(ctx context.Context, q Querier, memberID string, questionID int64) error {
	const query = `
		INSERT INTO book_questions (member_id, question_id) VALUES ($1, $2)
		ON CONFLICT (member_id, question_id) DO NOTHING`
	if _, err := q.Exec(ctx, query, memberID, questionID); err != nil {
		return fmt.Errorf("pgdal: 收藏题目 %d 失败: %w", questionID, err)
	}
	return nil
}

// ExecDeleteQuestion 删除题目，收藏记录随外键级联删除
func (d *questionDAL) ExecDeleteQuestion(ctx context.Context, q Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgdal: 删除题目 %d 失败: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
