package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"kcsatboard/biz/model"
	"kcsatboard/biz/repo/pgrepo"
	"kcsatboard/pkg/cache"
	"kcsatboard/pkg/keyspace"
)

// CommunityService 带防重保护的创建类操作
type CommunityService interface {
	WritePost(ctx context.Context, actorID, title, content string) (*model.Post, error)
	WriteComment(ctx context.Context, actorID string, postID int64, content string) (*model.Comment, error)
	ListComments(ctx context.Context, postID int64) ([]*model.Comment, error)

	// SaveQuestion 把题目加入个人收藏，已收藏过返回 false 且不报错。
	SaveQuestion(ctx context.Context, memberID string, questionID int64) (bool, error)

	// AcquireSignup 注册流程的防重锁，5 分钟内同一邮箱只允许一个注册流程。
	AcquireSignup(ctx context.Context, email string) error
}

type communityService struct {
	guard      IdempotencyGuard
	engagement EngagementService
	store      cache.CounterStore
	posts      pgrepo.PostRepository
	comments   pgrepo.CommentRepository
	questions  pgrepo.QuestionRepository
	logger     *zap.Logger
}

// NewCommunityService 创建 CommunityService
func NewCommunityService(
	guard IdempotencyGuard,
	engagement EngagementService,
	store cache.CounterStore,
	posts pgrepo.PostRepository,
	comments pgrepo.CommentRepository,
	questions pgrepo.QuestionRepository,
	logger *zap.Logger,
) CommunityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &communityService{
		guard:      guard,
		engagement: engagement,
		store:      store,
		posts:      posts,
		comments:   comments,
		questions:  questions,
		logger:     logger.Named("community"),
	}
}

func (s *communityService) WritePost(ctx context.Context, actorID, title, content string) (*model.Post, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrInvalidArgument)
	}
	if err := s.guard.TryAcquire(ctx, keyspace.OpPost, actorID, Fingerprint(title, content)); err != nil {
		return nil, err
	}

	post, err := s.posts.CreatePost(ctx, actorID, title, content)
	if err != nil {
		s.logger.Error("创建帖子失败", zap.String("actor", actorID), zap.Error(err))
		return nil, err
	}
	// 关系库已提交，计数器初始化失败只影响展示，INCR 会从 0 自动创建
	if err := s.engagement.InitCounters(ctx, model.KindPost, post.ID); err != nil {
		s.logger.Warn("帖子计数器初始化失败", zap.Int64("post_id", post.ID), zap.Error(err))
	}
	return post, nil
}

func (s *communityService) WriteComment(ctx context.Context, actorID string, postID int64, content string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		if errors.Is(err, pgrepo.ErrNotFound) {
			return nil, fmt.Errorf("%w: post %d", ErrEntityNotFound, postID)
		}
		return nil, err
	}
	if err := s.guard.TryAcquire(ctx, keyspace.OpComment, actorID, Fingerprint(strconv.FormatInt(postID, 10), content)); err != nil {
		return nil, err
	}

	comment, err := s.comments.CreateComment(ctx, postID, actorID, content)
	if err != nil {
		s.logger.Error("创建评论失败", zap.String("actor", actorID), zap.Int64("post_id", postID), zap.Error(err))
		return nil, err
	}
	if err := s.engagement.InitCounters(ctx, model.KindComment, comment.ID); err != nil {
		s.logger.Warn("评论计数器初始化失败", zap.Int64("comment_id", comment.ID), zap.Error(err))
	}
	return comment, nil
}

func (s *communityService) ListComments(ctx context.Context, postID int64) ([]*model.Comment, error) {
	return s.comments.ListByPost(ctx, postID)
}

func (s *communityService) SaveQuestion(ctx context.Context, memberID string, questionID int64) (bool, error) {
	if err := s.guard.TryAcquire(ctx, keyspace.OpQuestionSave, memberID, Fingerprint(strconv.FormatInt(questionID, 10))); err != nil {
		return false, err
	}

	markKey := keyspace.QuestionSavedMark(memberID, questionID)
	created, err := s.store.SetIfAbsent(ctx, markKey, markValue, 0)
	if err != nil {
		return false, err
	}
	if !created {
		s.logger.Debug("题目已在收藏中", zap.String("member", memberID), zap.Int64("question_id", questionID))
		return false, nil
	}

	if err := s.questions.RecordSave(ctx, memberID, questionID); err != nil {
		// 写库失败，撤销标记以便重试
		if delErr := releaseMark(ctx, s.store, markKey); delErr != nil {
			s.logger.Warn("回滚收藏标记失败", zap.String("key", markKey), zap.Error(delErr))
		}
		if errors.Is(err, pgrepo.ErrNotFound) {
			return false, fmt.Errorf("%w: question %d", ErrEntityNotFound, questionID)
		}
		s.logger.Error("收藏题目失败", zap.Int64("question_id", questionID), zap.Error(err))
		return false, err
	}
	return true, nil
}

func (s *communityService) AcquireSignup(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	return s.guard.TryAcquire(ctx, keyspace.OpSignup, email, "")
}
