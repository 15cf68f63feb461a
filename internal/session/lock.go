package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// ErrLockTimeout is returned when a quiz lock cannot be acquired before the context ends.
var ErrLockTimeout = quiz.ErrBusy

// Locker serializes mutating operations per quiz.
type Locker interface {
	Lock(ctx context.Context, quizID int64) (unlock func(), err error)
}

// LocalLocker serializes per quiz inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[int64]*lockSlot)}
}

// Lock blocks until the quiz is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, quizID int64) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[quizID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[quizID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(quizID, slot)
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.release(quizID, slot)
		})
	}, nil
}

func (l *LocalLocker) release(quizID int64, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, quizID)
	}
}

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisLocker serializes per quiz across API instances with SET NX and a compare-and-delete unlock.
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
	retry time.Duration
}

// NewRedisLocker creates a distributed locker. The lock expires after ttl if never released.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{redis: client, ttl: ttl, retry: 25 * time.Millisecond}
}

// Lock polls until the lock is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, quizID int64) (func(), error) {
	key := fmt.Sprintf("quiz:lock:%d", quizID)
	token := uuid.New().String()

	for {
		acquired, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.redis.Eval(releaseCtx, unlockScript, []string{key}, token).Err()
	}, nil
}
