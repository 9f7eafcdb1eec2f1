package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcsatboard/biz/model"
	"kcsatboard/pkg/keyspace"
)

func seedVotes(t *testing.T, mr *miniredisHandle, id int64, up, down string) {
	t.Helper()
	if up != "" {
		mr.set(t, keyspace.CommentUpVote(id), up)
	}
	if down != "" {
		mr.set(t, keyspace.CommentDownVote(id), down)
	}
}

func commentList(ids ...int64) []*model.Comment {
	out := make([]*model.Comment, len(ids))
	for i, id := range ids {
		out[i] = &model.Comment{ID: id, PostID: 1}
	}
	return out
}

func scores(list []model.HotComment) []int64 {
	out := make([]int64, len(list))
	for i, hc := range list {
		out[i] = hc.Score
	}
	return out
}

func TestSelectHotComments_FilterSortTruncate(t *testing.T) {
	store, raw := newTestStore(t)
	mr := &miniredisHandle{raw}
	sel := NewHotCommentSelector(store, 0, 0, nil)

	seedVotes(t, mr, 1, "10", "2")  // 8
	seedVotes(t, mr, 2, "5", "5")   // 0
	seedVotes(t, mr, 3, "3", "0")   // 3
	seedVotes(t, mr, 4, "20", "18") // 2

	got, err := sel.SelectHotComments(context.Background(), 1, commentList(1, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 3, 2}, scores(got))
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(10), got[0].Up)
	assert.Equal(t, int64(2), got[0].Down)
}

func TestSelectHotComments_AtMostThreeStableTies(t *testing.T) {
	store, raw := newTestStore(t)
	mr := &miniredisHandle{raw}
	sel := NewHotCommentSelector(store, 0, 0, nil)

	for id := int64(1); id <= 5; id++ {
		seedVotes(t, mr, id, "4", "1")
	}
	got, err := sel.SelectHotComments(context.Background(), 1, commentList(5, 3, 1, 4, 2))
	require.NoError(t, err)
	require.Len(t, got, 3)
	// 同分保持输入顺序
	assert.Equal(t, []int64{5, 3, 1}, []int64{got[0].ID, got[1].ID, got[2].ID})
}

func TestSelectHotComments_AbsentCounterIsZero(t *testing.T) {
	store, raw := newTestStore(t)
	mr := &miniredisHandle{raw}
	sel := NewHotCommentSelector(store, 0, 0, nil)

	seedVotes(t, mr, 1, "2", "") // down 缺失
	got, err := sel.SelectHotComments(context.Background(), 1, commentList(1, 2))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Score)
}

func TestSelectHotComments_CorruptedIsError(t *testing.T) {
	store, raw := newTestStore(t)
	mr := &miniredisHandle{raw}
	sel := NewHotCommentSelector(store, 0, 0, nil)

	seedVotes(t, mr, 1, "abc", "0")
	_, err := sel.SelectHotComments(context.Background(), 1, commentList(1))
	assert.ErrorIs(t, err, ErrCounterCorrupted)
}

func TestSelectHotComments_UnavailableDegradesToEmpty(t *testing.T) {
	store, raw := newTestStore(t)
	sel := NewHotCommentSelector(store, 0, 0, nil)
	raw.Close()

	got, err := sel.SelectHotComments(context.Background(), 1, commentList(1, 2))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectHotComments_Empty(t *testing.T) {
	store, _ := newTestStore(t)
	sel := NewHotCommentSelector(store, 0, 0, nil)
	got, err := sel.SelectHotComments(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRankHotComments_NegativeScoresExcluded(t *testing.T) {
	in := []model.HotComment{{Score: -4}, {Score: 1}, {Score: 2}}
	got := rankHotComments(in, 2, 3)
	assert.Equal(t, []int64{2}, scores(got))
}
