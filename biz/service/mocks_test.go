package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kcsatboard/biz/model"
	"kcsatboard/pkg/cache"
)

func newTestStore(t *testing.T) (cache.CounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store, err := cache.NewRedisStore(client, "")
	require.NoError(t, err)
	return store, mr
}

// MockPostRepository 同时满足 pgrepo.PostRepository 与 HotMarker
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) CreatePost(ctx context.Context, authorID, title, content string) (*model.Post, error) {
	args := m.Called(ctx, authorID, title, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepository) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepository) MarkHot(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) CreateComment(ctx context.Context, postID int64, authorID, content string) (*model.Comment, error) {
	args := m.Called(ctx, postID, authorID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByPost(ctx context.Context, postID int64) ([]*model.Comment, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Comment), args.Error(1)
}

// MockQuestionRepository 同时满足 pgrepo.QuestionRepository 与 QuestionSource
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) CreateQuestion(ctx context.Context, title string) (*model.Question, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Question), args.Error(1)
}

func (m *MockQuestionRepository) FindSharedCandidates(ctx context.Context, minShare int64) ([]*model.Question, error) {
	args := m.Called(ctx, minShare)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Question), args.Error(1)
}

func (m *MockQuestionRepository) RecordSave(ctx context.Context, memberID string, questionID int64) error {
	return m.Called(ctx, memberID, questionID).Error(0)
}

func (m *MockQuestionRepository) DeleteQuestion(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, messageBody interface{}) error {
	return m.Called(ctx, routingKey, messageBody).Error(0)
}

// miniredisHandle 为测试提供不带前缀的原始 key 读写
type miniredisHandle struct {
	*miniredis.Miniredis
}

func (h *miniredisHandle) get(t *testing.T, key string) string {
	t.Helper()
	v, err := h.Get(key)
	require.NoError(t, err)
	return v
}

func (h *miniredisHandle) set(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, h.Set(key, value))
}
