package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror keeps a copy of live session state outside the process.
type Mirror interface {
	Save(ctx context.Context, s State) error
	Load(ctx context.Context, quizID int64) (*State, error)
	Delete(ctx context.Context, quizID int64) error
}

// RedisMirror stores session state as JSON under quiz:session:<id> with a TTL.
type RedisMirror struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisMirror creates a Redis-backed mirror.
func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &RedisMirror{redis: client, ttl: ttl}
}

func (m *RedisMirror) key(quizID int64) string {
	return fmt.Sprintf("quiz:session:%d", quizID)
}

// Save writes the state and refreshes the TTL.
func (m *RedisMirror) Save(ctx context.Context, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := m.redis.Set(ctx, m.key(s.QuizID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Load returns nil, nil when no state is stored.
func (m *RedisMirror) Load(ctx context.Context, quizID int64) (*State, error) {
	data, err := m.redis.Get(ctx, m.key(quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &s, nil
}

// Delete removes the stored state.
func (m *RedisMirror) Delete(ctx context.Context, quizID int64) error {
	if err := m.redis.Del(ctx, m.key(quizID)).Err(); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}
