package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kcsatboard/biz/model"
	"kcsatboard/biz/repo/pgrepo"
	"kcsatboard/pkg/keyspace"
)

type communityFixture struct {
	svc       CommunityService
	mr        *miniredisHandle
	posts     *MockPostRepository
	comments  *MockCommentRepository
	questions *MockQuestionRepository
}

func newCommunity(t *testing.T) *communityFixture {
	t.Helper()
	store, raw := newTestStore(t)
	f := &communityFixture{
		mr:        &miniredisHandle{raw},
		posts:     new(MockPostRepository),
		comments:  new(MockCommentRepository),
		questions: new(MockQuestionRepository),
	}
	guard := NewIdempotencyGuard(store, nil, nil, nil)
	engagement := NewEngagementService(store, f.posts, nil, nil, EngagementOptions{}, nil)
	f.svc = NewCommunityService(guard, engagement, store, f.posts, f.comments, f.questions, nil)
	return f
}

func TestWritePost_DuplicateWithinWindow(t *testing.T) {
	f := newCommunity(t)
	ctx := context.Background()

	f.posts.On("CreatePost", mock.Anything, "a@b.com", "title", "body").
		Return(&model.Post{ID: 10, AuthorID: "a@b.com", Title: "title", Content: "body"}, nil).Once()

	p, err := f.svc.WritePost(ctx, "a@b.com", "title", "body")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.ID)
	assert.Equal(t, "0", f.mr.get(t, keyspace.PostViewCount(10)))
	assert.Equal(t, "0", f.mr.get(t, keyspace.PostUpVote(10)))
	assert.Equal(t, "0", f.mr.get(t, keyspace.PostDownVote(10)))

	_, err = f.svc.WritePost(ctx, "a@b.com", "title", "body")
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	f.posts.AssertNumberOfCalls(t, "CreatePost", 1)

	// 窗口过后可以再次提交
	f.mr.FastForward(time.Minute + time.Second)
	f.posts.On("CreatePost", mock.Anything, "a@b.com", "title", "body").
		Return(&model.Post{ID: 11}, nil).Once()
	_, err = f.svc.WritePost(ctx, "a@b.com", "title", "body")
	require.NoError(t, err)
	f.posts.AssertExpectations(t)
}

func TestWritePost_Validation(t *testing.T) {
	f := newCommunity(t)
	_, err := f.svc.WritePost(context.Background(), "a@b.com", " ", "body")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	f.posts.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWriteComment(t *testing.T) {
	f := newCommunity(t)
	ctx := context.Background()

	f.posts.On("GetPost", mock.Anything, int64(1)).Return(&model.Post{ID: 1}, nil)
	f.comments.On("CreateComment", mock.Anything, int64(1), "a@b.com", "nice").
		Return(&model.Comment{ID: 100, PostID: 1}, nil).Once()

	c, err := f.svc.WriteComment(ctx, "a@b.com", 1, "nice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), c.ID)
	assert.Equal(t, "0", f.mr.get(t, keyspace.CommentUpVote(100)))

	_, err = f.svc.WriteComment(ctx, "a@b.com", 1, "nice")
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	f.comments.AssertExpectations(t)
}

func TestWriteComment_PostMissing(t *testing.T) {
	f := newCommunity(t)
	f.posts.On("GetPost", mock.Anything, int64(404)).Return(nil, pgrepo.ErrNotFound)

	_, err := f.svc.WriteComment(context.Background(), "a@b.com", 404, "hello")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestWritePost_CacheDownRejects(t *testing.T) {
	f := newCommunity(t)
	f.mr.Close()

	_, err := f.svc.WritePost(context.Background(), "a@b.com", "t", "c")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	f.posts.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveQuestion(t *testing.T) {
	f := newCommunity(t)
	ctx := context.Background()

	f.questions.On("RecordSave", mock.Anything, "a@b.com", int64(7)).Return(nil).Once()

	saved, err := f.svc.SaveQuestion(ctx, "a@b.com", 7)
	require.NoError(t, err)
	assert.True(t, saved)

	// 窗口内重复点击被幂等锁拦下
	_, err = f.svc.SaveQuestion(ctx, "a@b.com", 7)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	// 窗口过后已收藏标记仍然存在，静默返回 false
	f.mr.FastForward(time.Minute + time.Second)
	saved, err = f.svc.SaveQuestion(ctx, "a@b.com", 7)
	require.NoError(t, err)
	assert.False(t, saved)

	f.questions.AssertExpectations(t)
}

func TestSaveQuestion_DBFailureReleasesMark(t *testing.T) {
	f := newCommunity(t)
	ctx := context.Background()

	f.questions.On("RecordSave", mock.Anything, "a@b.com", int64(7)).Return(errors.New("db down")).Once()
	_, err := f.svc.SaveQuestion(ctx, "a@b.com", 7)
	assert.Error(t, err)
	assert.False(t, f.mr.Exists(keyspace.QuestionSavedMark("a@b.com", 7)))

	f.questions.On("RecordSave", mock.Anything, "a@b.com", int64(8)).Return(pgrepo.ErrNotFound).Once()
	_, err = f.svc.SaveQuestion(ctx, "a@b.com", 8)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestSaveQuestion_RequestDeadlineReleasesMark(t *testing.T) {
	f := newCommunity(t)

	f.questions.On("RecordSave", mock.Anything, "a@b.com", int64(7)).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded).Once()
	f.questions.On("RecordSave", mock.Anything, "a@b.com", int64(7)).Return(nil).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.svc.SaveQuestion(ctx, "a@b.com", 7)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.mr.Exists(keyspace.QuestionSavedMark("a@b.com", 7)))

	// 幂等窗口过后可以重新收藏
	f.mr.FastForward(time.Minute + time.Second)
	saved, err := f.svc.SaveQuestion(context.Background(), "a@b.com", 7)
	require.NoError(t, err)
	assert.True(t, saved)
	f.questions.AssertExpectations(t)
}

func TestAcquireSignup(t *testing.T) {
	f := newCommunity(t)
	ctx := context.Background()

	require.NoError(t, f.svc.AcquireSignup(ctx, "new@b.com"))
	assert.ErrorIs(t, f.svc.AcquireSignup(ctx, "new@b.com"), ErrDuplicateSubmission)

	f.mr.FastForward(5*time.Minute + time.Second)
	require.NoError(t, f.svc.AcquireSignup(ctx, "new@b.com"))

	assert.ErrorIs(t, f.svc.AcquireSignup(ctx, ""), ErrInvalidArgument)
}
