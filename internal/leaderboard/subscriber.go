package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// DefaultChannel carries leaderboard updates between API instances.
const DefaultChannel = "quiz:leaderboard:updates"

// RoomBroadcaster delivers a message to a hub room.
type RoomBroadcaster interface {
	BroadcastToRoom(room string, msg ws.Message) error
}

// RedisPublisher publishes updates on a Redis channel for every instance's Broadcaster.
type RedisPublisher struct {
	redis   *redis.Client
	channel string
}

// NewRedisPublisher creates a Pub/Sub publisher.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{redis: client, channel: channel}
}

// Publish encodes the update and publishes it.
func (p *RedisPublisher) Publish(ctx context.Context, update ws.LeaderboardUpdatePayload) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal leaderboard update: %w", err)
	}
	if err := p.redis.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish leaderboard update: %w", err)
	}
	return nil
}

// LocalPublisher sends updates straight to the local hub. Used for single-instance deployments.
type LocalPublisher struct {
	hub RoomBroadcaster
}

// NewLocalPublisher creates an in-process publisher.
func NewLocalPublisher(hub RoomBroadcaster) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

// Publish broadcasts the update to the quiz room.
func (p *LocalPublisher) Publish(_ context.Context, update ws.LeaderboardUpdatePayload) error {
	return deliver(p.hub, update)
}

// Broadcaster listens for Redis Pub/Sub leaderboard updates and forwards them to quiz rooms.
type Broadcaster struct {
	redis   *redis.Client
	hub     RoomBroadcaster
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a Pub/Sub powered leaderboard broadcaster.
func NewBroadcaster(redis *redis.Client, hub RoomBroadcaster, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{
		redis:   redis,
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "leaderboard_broadcaster").Logger(),
	}
}

// Run subscribes to the update channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var evt ws.LeaderboardUpdatePayload
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode leaderboard update payload")
		return
	}
	if err := deliver(b.hub, evt); err != nil {
		b.logger.Debug().Err(err).Int64("quiz_id", evt.QuizID).Msg("leaderboard update not delivered to every client")
	}
}

func deliver(hub RoomBroadcaster, update ws.LeaderboardUpdatePayload) error {
	msg, err := ws.NewMessage(ws.TypeLeaderboardUpdate, update)
	if err != nil {
		return err
	}
	return hub.BroadcastToRoom(ws.QuizRoom(update.QuizID), msg)
}
