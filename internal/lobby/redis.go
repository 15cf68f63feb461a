package lobby

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLobby stores members in a sorted set scored by join time, with names in a companion hash.
// Keys: quiz:lobby:<id> and quiz:lobby:<id>:names.
type RedisLobby struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisLobby creates a Redis-backed lobby. Keys expire ttl after the last join.
func NewRedisLobby(client *redis.Client, ttl time.Duration) *RedisLobby {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &RedisLobby{redis: client, ttl: ttl, now: time.Now}
}

func (l *RedisLobby) keys(quizID int64) (string, string) {
	members := fmt.Sprintf("quiz:lobby:%d", quizID)
	return members, members + ":names"
}

func (l *RedisLobby) Join(ctx context.Context, quizID int64, p Participant) ([]Participant, error) {
	membersKey, namesKey := l.keys(quizID)
	joined := p.JoinedAt
	if joined.IsZero() {
		joined = l.now()
	}

	pipe := l.redis.TxPipeline()
	// NX keeps the first join position on rejoin
	pipe.ZAddNX(ctx, membersKey, redis.Z{Score: float64(joined.UnixMicro()), Member: p.ID})
	pipe.HSet(ctx, namesKey, p.ID, p.Name)
	pipe.Expire(ctx, membersKey, l.ttl)
	pipe.Expire(ctx, namesKey, l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("join lobby: %w", err)
	}
	return l.Members(ctx, quizID)
}

func (l *RedisLobby) Leave(ctx context.Context, quizID int64, participantID string) ([]Participant, error) {
	membersKey, namesKey := l.keys(quizID)

	pipe := l.redis.TxPipeline()
	pipe.ZRem(ctx, membersKey, participantID)
	pipe.HDel(ctx, namesKey, participantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("leave lobby: %w", err)
	}
	return l.Members(ctx, quizID)
}

func (l *RedisLobby) Members(ctx context.Context, quizID int64) ([]Participant, error) {
	membersKey, namesKey := l.keys(quizID)

	entries, err := l.redis.ZRangeWithScores(ctx, membersKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list lobby: %w", err)
	}
	if len(entries) == 0 {
		return []Participant{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Member.(string)
	}
	names, err := l.redis.HMGet(ctx, namesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("list lobby names: %w", err)
	}

	members := make([]Participant, len(entries))
	for i, e := range entries {
		name, _ := names[i].(string)
		members[i] = Participant{
			ID:       ids[i],
			Name:     name,
			JoinedAt: time.UnixMicro(int64(e.Score)).UTC(),
		}
	}
	return members, nil
}

func (l *RedisLobby) Clear(ctx context.Context, quizID int64) error {
	membersKey, namesKey := l.keys(quizID)
	if err := l.redis.Del(ctx, membersKey, namesKey).Err(); err != nil {
		return fmt.Errorf("clear lobby: %w", err)
	}
	return nil
}

var (
	_ Lobby = (*RedisLobby)(nil)
	_ Lobby = (*MemoryLobby)(nil)
)
