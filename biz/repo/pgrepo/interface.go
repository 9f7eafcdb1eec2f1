package pgrepo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"kcsatboard/biz/dal/pgdal"
	"kcsatboard/biz/model"
)

// DB 是仓库层需要的连接能力，*pgxpool.Pool 满足该接口
type DB interface {
	pgdal.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostRepository 定义了帖子的持久化操作。
// 仓库层是关系库的唯一入口，负责错误转换与缓存。
type PostRepository interface {
	// CreatePost 创建帖子。
	CreatePost(ctx context.Context, authorID, title, content string) (*model.Post, error)

	// GetPost 根据 ID 获取帖子，不存在时返回 ErrNotFound。
	GetPost(ctx context.Context, id int64) (*model.Post, error)

	// MarkHot 把帖子的 is_hot_post 置为 true，重复调用无副作用。
	MarkHot(ctx context.Context, id int64) error
}

// CommentRepository 定义了评论的持久化操作。
type CommentRepository interface {
	CreateComment(ctx context.Context, postID int64, authorID, content string) (*model.Comment, error)

	// ListByPost 按创建顺序返回帖子下的所有评论。
	ListByPost(ctx context.Context, postID int64) ([]*model.Comment, error)
}

// QuestionRepository 定义了题目的持久化操作。
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, title string) (*model.Question, error)

	// GetQuestion 读缓存优先，未命中回源并回填。
	GetQuestion(ctx context.Context, id int64) (*model.Question, error)

	// FindSharedCandidates 返回 share_counter > minShare 的题目，按 id 升序。
	FindSharedCandidates(ctx context.Context, minShare int64) ([]*model.Question, error)

	// RecordSave 在一个事务内增加分享数并写入收藏记录，然后失效题目缓存。
	RecordSave(ctx context.Context, memberID string, questionID int64) error

	// DeleteQuestion 删除题目并立即失效快照，排行读取随即报告 ErrNotFound。
	DeleteQuestion(ctx context.Context, id int64) error
}
