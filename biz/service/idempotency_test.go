package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcsatboard/pkg/keyspace"
)

func TestAcquire_TrueThenFalseThenTrueAfterTTL(t *testing.T) {
	store, mr := newTestStore(t)
	guard := NewIdempotencyGuard(store, nil, nil, nil)
	ctx := context.Background()
	fp := Fingerprint("same comment body")

	ok, err := guard.Acquire(ctx, keyspace.OpComment, "a@b.com", fp, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Acquire(ctx, keyspace.OpComment, "a@b.com", fp, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = guard.Acquire(ctx, keyspace.OpComment, "a@b.com", fp, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquire_DifferentContentProceeds(t *testing.T) {
	store, _ := newTestStore(t)
	guard := NewIdempotencyGuard(store, nil, nil, nil)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, keyspace.OpPost, "a@b.com", Fingerprint("t1", "c"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = guard.Acquire(ctx, keyspace.OpPost, "a@b.com", Fingerprint("t2", "c"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	// 不同用户同样内容也不受影响
	ok, err = guard.Acquire(ctx, keyspace.OpPost, "x@y.com", Fingerprint("t1", "c"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquire_ConcurrentSingleWinner(t *testing.T) {
	store, _ := newTestStore(t)
	guard := NewIdempotencyGuard(store, nil, nil, nil)
	ctx := context.Background()

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := guard.Acquire(ctx, keyspace.OpPost, "a@b.com", "fp", time.Minute)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

func TestTryAcquire_Windows(t *testing.T) {
	store, mr := newTestStore(t)
	guard := NewIdempotencyGuard(store, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, guard.TryAcquire(ctx, keyspace.OpSignup, "a@b.com", ""))
	assert.Equal(t, 5*time.Minute, mr.TTL(keyspace.IdempotencyLock(keyspace.OpSignup, "a@b.com", "")))

	err := guard.TryAcquire(ctx, keyspace.OpSignup, "a@b.com", "")
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	require.NoError(t, guard.TryAcquire(ctx, keyspace.OpComment, "a@b.com", "h"))
	assert.Equal(t, time.Minute, mr.TTL(keyspace.IdempotencyLock(keyspace.OpComment, "a@b.com", "h")))
}

func TestTryAcquire_CustomWindowAndErrors(t *testing.T) {
	store, mr := newTestStore(t)
	guard := NewIdempotencyGuard(store, LockWindows{keyspace.OpPost: 10 * time.Second}, nil, nil)
	ctx := context.Background()

	require.NoError(t, guard.TryAcquire(ctx, keyspace.OpPost, "a@b.com", "h"))
	assert.Equal(t, 10*time.Second, mr.TTL(keyspace.IdempotencyLock(keyspace.OpPost, "a@b.com", "h")))

	assert.ErrorIs(t, guard.TryAcquire(ctx, keyspace.OperationKind("unknown"), "a@b.com", "h"), ErrInvalidArgument)
	assert.ErrorIs(t, guard.TryAcquire(ctx, keyspace.OpPost, "", "h"), ErrInvalidArgument)

	mr.Close()
	assert.ErrorIs(t, guard.TryAcquire(ctx, keyspace.OpComment, "a@b.com", "h"), ErrCacheUnavailable)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
	assert.Len(t, Fingerprint("x"), 40)
}
