package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultQuestionCacheTTL = 10 * time.Minute

// QuestionLoader reads the ordered question list of a quiz.
type QuestionLoader interface {
	ListQuestions(ctx context.Context, quizID int64) ([]Question, error)
}

// QuestionCache keeps question lists in Redis so submissions do not hit Postgres.
// Questions cannot change once a quiz is locked, so only explicit invalidation is needed.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	logger zerolog.Logger
}

// NewQuestionCache wraps loader with a Redis read-through cache. A nil client disables the
// cache; concurrent loads still coalesce.
func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration, logger zerolog.Logger) *QuestionCache {
	if ttl <= 0 {
		ttl = defaultQuestionCacheTTL
	}
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger.With().Str("component", "question_cache").Logger(),
	}
}

func (c *QuestionCache) key(quizID int64) string {
	return fmt.Sprintf("quiz:%d:questions", quizID)
}

// ListQuestions returns the cached list, loading and filling the cache on a miss.
func (c *QuestionCache) ListQuestions(ctx context.Context, quizID int64) ([]Question, error) {
	if questions, ok := c.get(ctx, quizID); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(quizID, 10), func() (interface{}, error) {
		if questions, ok := c.get(ctx, quizID); ok {
			return questions, nil
		}
		questions, err := c.loader.ListQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if len(questions) > 0 {
			c.set(ctx, quizID, questions)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Question), nil
}

// Invalidate drops the cached list for a quiz.
func (c *QuestionCache) Invalidate(ctx context.Context, quizID int64) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key(quizID)).Err(); err != nil {
		return fmt.Errorf("invalidate questions: %w", err)
	}
	return nil
}

func (c *QuestionCache) get(ctx context.Context, quizID int64) ([]Question, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("question cache read failed")
		}
		return nil, false
	}
	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		c.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("question cache decode failed")
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) set(ctx context.Context, quizID int64, questions []Question) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(quizID), data, c.ttlWithJitter()).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("question cache write failed")
	}
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
