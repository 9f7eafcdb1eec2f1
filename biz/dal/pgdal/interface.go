package pgdal

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kcsatboard/biz/model"
)

// Querier 是 *pgxpool.Pool、*pgx.Conn 与 pgx.Tx 的公共子集
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostDAL 定义了帖子数据访问的底层操作
type PostDAL interface {
	ExecCreatePost(ctx context.Context, q Querier, authorID, title, content string) (*model.Post, error)
	ExecGetPostByID(ctx context.Context, q Querier, id int64) (*model.Post, error)
	ExecMarkHot(ctx context.Context, q Querier, id int64) error
}

// CommentDAL 定义了评论数据访问的底层操作
type CommentDAL interface {
	ExecCreateComment(ctx context.Context, q Querier, postID int64, authorID, content string) (*model.Comment, error)
	ExecListCommentsByPost(ctx context.Context, q Querier, postID int64) ([]*model.Comment, error)
}

// QuestionDAL 定义了题目数据访问的底层操作
type QuestionDAL interface {
	ExecCreateQuestion(ctx context.Context, q Querier, title string) (*model.Question, error)
	ExecGetQuestionByID(ctx context.Context, q Querier, id int64) (*model.Question, error)
	ExecFindSharedCandidates(ctx context.Context, q Querier, minShare int64) ([]*model.Question, error)
	ExecDeleteQuestion(ctx context.Context, q Querier, id int64) error
	ExecIncrementShareCounter(ctx context.Context, q Querier, id int64) error
	ExecAddToCollection(ctx context.Context, q Querier, memberID string, questionID int64) error
}
