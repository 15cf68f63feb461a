package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func assertMutualExclusion(t *testing.T, locker Locker) {
	t.Helper()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), 7)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestLocalLockerSerializes(t *testing.T) {
	assertMutualExclusion(t, NewLocalLocker())
}

func TestLocalLockerTimesOut(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 1)
	assert.ErrorIs(t, err, ErrLockTimeout)

	// Other quizzes are independent.
	other, err := l.Lock(context.Background(), 2)
	require.NoError(t, err)
	other()
}

func TestLocalLockerUnlockTwiceIsSafe(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	unlock()
	unlock()

	again, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	again()
	assert.Empty(t, l.slots)
}

func TestRedisLockerSerializes(t *testing.T) {
	_, client := newTestRedis(t)
	assertMutualExclusion(t, NewRedisLocker(client, time.Second))
}

func TestRedisLockerReleasesOnlyOwnToken(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisLocker(client, time.Second)

	unlock, err := l.Lock(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, mr.Exists("quiz:lock:3"))

	// Simulate expiry and takeover by another holder.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("quiz:lock:3", "someone-else"))

	unlock()
	got, err := mr.Get("quiz:lock:3")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerTimesOut(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewRedisLocker(client, time.Minute)

	unlock, err := l.Lock(context.Background(), 4)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 4)
	assert.ErrorIs(t, err, ErrLockTimeout)
}
