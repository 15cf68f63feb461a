package leaderboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// SnapshotStore is what the worker needs from persistence.
type SnapshotStore interface {
	ListActiveQuizzes(ctx context.Context) ([]quiz.Quiz, error)
	InsertSnapshot(ctx context.Context, s quiz.Snapshot) (quiz.Snapshot, error)
	LatestSnapshot(ctx context.Context, quizID int64) (quiz.Snapshot, error)
}

// SnapshotWorker periodically persists the standings of every active quiz.
// A snapshot is skipped when its content matches the latest stored one.
type SnapshotWorker struct {
	svc      *Service
	store    SnapshotStore
	logger   zerolog.Logger
	interval time.Duration
}

func NewSnapshotWorker(svc *Service, store SnapshotStore, interval time.Duration, logger zerolog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SnapshotWorker{
		svc:      svc,
		store:    store,
		logger:   logger.With().Str("component", "leaderboard_snapshot_worker").Logger(),
		interval: interval,
	}
}

// Run blocks until context cancellation.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	if w.svc == nil || w.store == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick snapshots every active quiz once.
func (w *SnapshotWorker) Tick(ctx context.Context) {
	active, err := w.store.ListActiveQuizzes(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to list active quizzes")
		return
	}
	for _, qz := range active {
		if _, err := w.SnapshotQuiz(ctx, qz); err != nil {
			w.logger.Warn().Err(err).Int64("quiz_id", qz.ID).Msg("snapshot failed")
		}
	}
}

// SnapshotQuiz persists the standings of one quiz. It reports whether a row was written.
func (w *SnapshotWorker) SnapshotQuiz(ctx context.Context, qz quiz.Quiz) (bool, error) {
	entries, err := w.svc.Standings(ctx, qz)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return false, err
	}
	sum := sha256.Sum256(data)
	sourceHash := hex.EncodeToString(sum[:])

	latest, err := w.store.LatestSnapshot(ctx, qz.ID)
	switch {
	case err == nil && latest.SourceHash == sourceHash:
		return false, nil
	case err != nil && !errors.Is(err, quiz.ErrSnapshotNotFound):
		return false, err
	}

	now := w.svc.now().UTC()
	if _, err := w.store.InsertSnapshot(ctx, quiz.Snapshot{
		QuizID:      qz.ID,
		GeneratedAt: now,
		Entries:     data,
		SourceHash:  sourceHash,
	}); err != nil {
		return false, err
	}

	w.logger.Info().
		Int64("quiz_id", qz.ID).
		Int("entries", len(entries)).
		Time("generated_at", now).
		Msg("leaderboard snapshot persisted")

	return true, nil
}
