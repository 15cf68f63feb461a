//go:build integration

package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gokatarajesh/livequiz/db/migrations"
	"github.com/gokatarajesh/livequiz/internal/quiz"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "."))
	return pool
}

func seed(t *testing.T, s *Store, questions int) quiz.Quiz {
	t.Helper()
	ctx := context.Background()
	qz, err := s.CreateQuiz(ctx, quiz.Quiz{HostID: "host-1", Title: "Capitals", HasTimer: true, ShowLeaderboard: true})
	require.NoError(t, err)
	batch := make([]quiz.Question, questions)
	for i := range batch {
		batch[i] = quiz.Question{
			Type:            quiz.TypeSingleChoice,
			Text:            fmt.Sprintf("Question %d", i),
			Options:         []quiz.Option{{Text: "A"}, {Text: "B"}},
			CorrectAnswers:  []string{"1"},
			Points:          1,
			TimeLimit:       30,
			ShowLeaderboard: true,
		}
	}
	if questions > 0 {
		_, err = s.AppendQuestions(ctx, qz.ID, batch)
		require.NoError(t, err)
	}
	return qz
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore(startPostgres(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	qz := seed(t, s, 2)
	more, err := s.AppendQuestions(ctx, qz.ID, []quiz.Question{{Type: quiz.TypeShortAnswer, Text: "Capital of Peru", CorrectAnswers: []string{"Lima"}, Points: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, more[0].Order)

	questions, err := s.ListQuestions(ctx, qz.ID)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, []quiz.Option{{Text: "A"}, {Text: "B"}}, questions[0].Options)
	assert.Equal(t, quiz.TypeShortAnswer, questions[2].Type)

	_, err = s.PublishQuiz(ctx, qz.ID, "ABC123", now)
	assert.ErrorIs(t, err, quiz.ErrStateConflict)

	_, err = s.LockQuiz(ctx, qz.ID)
	require.NoError(t, err)
	_, err = s.AppendQuestions(ctx, qz.ID, []quiz.Question{{Type: quiz.TypeShortAnswer, Text: "late", CorrectAnswers: []string{"x"}}})
	assert.ErrorIs(t, err, quiz.ErrQuizLocked)

	published, err := s.PublishQuiz(ctx, qz.ID, "ABC123", now)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", published.JoinCode)
	assert.Equal(t, quiz.StatePublished, published.State())

	byCode, err := s.GetQuizByJoinCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, qz.ID, byCode.ID)

	answer := quiz.Answer{QuizID: qz.ID, QuestionID: questions[0].ID, ParticipantID: "p1", Response: "1"}
	_, err = s.ReplaceAnswer(ctx, published.SessionCount, answer)
	assert.ErrorIs(t, err, quiz.ErrNotActive)

	active, err := s.ActivateQuiz(ctx, qz.ID)
	require.NoError(t, err)
	assert.True(t, active.IsActive)
	assert.Equal(t, 1, active.SessionCount)
	_, err = s.ReplaceAnswer(ctx, active.SessionCount, answer)
	require.NoError(t, err)

	_, err = s.ActivateQuiz(ctx, qz.ID)
	assert.ErrorIs(t, err, quiz.ErrStateConflict)

	_, err = s.PauseQuiz(ctx, qz.ID, now)
	require.NoError(t, err)
	resumed, err := s.ResumeQuiz(ctx, qz.ID, now.Add(12500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 12, resumed.PausedSeconds)
	assert.False(t, resumed.IsPaused)

	running, err := s.ListActiveQuizzes(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, qz.ID, running[0].ID)

	stopped, err := s.StopQuiz(ctx, qz.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StateStopped, stopped.State())
	assert.Equal(t, "ABC123", stopped.JoinCode)

	republished, err := s.PublishQuiz(ctx, qz.ID, "ZZZ999", now)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", republished.JoinCode)
	assert.Equal(t, 2, republished.PublishCount)

	restarted, err := s.ActivateQuiz(ctx, qz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, restarted.SessionCount)
	answers, err := s.ListAnswers(ctx, qz.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)

	_, err = s.ReplaceAnswer(ctx, active.SessionCount, answer)
	assert.ErrorIs(t, err, quiz.ErrNotActive)
	answers, err = s.ListAnswers(ctx, qz.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestStoreJoinCodeUniqueness(t *testing.T) {
	s := NewStore(startPostgres(t))
	ctx := context.Background()

	a := seed(t, s, 1)
	b := seed(t, s, 1)
	for _, id := range []int64{a.ID, b.ID} {
		_, err := s.LockQuiz(ctx, id)
		require.NoError(t, err)
	}
	_, err := s.PublishQuiz(ctx, a.ID, "SAME01", time.Now())
	require.NoError(t, err)
	_, err = s.PublishQuiz(ctx, b.ID, "SAME01", time.Now())
	assert.ErrorIs(t, err, quiz.ErrJoinCodeTaken)
}

func TestStoreAnswersResultsSnapshots(t *testing.T) {
	s := NewStore(startPostgres(t))
	ctx := context.Background()
	qz := seed(t, s, 1)
	questions, err := s.ListQuestions(ctx, qz.ID)
	require.NoError(t, err)
	qid := questions[0].ID
	_, err = s.LockQuiz(ctx, qz.ID)
	require.NoError(t, err)
	_, err = s.PublishQuiz(ctx, qz.ID, "ANS001", time.Now())
	require.NoError(t, err)
	qz, err = s.ActivateQuiz(ctx, qz.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ReplaceAnswer(ctx, qz.SessionCount, quiz.Answer{QuizID: qz.ID, QuestionID: qid, ParticipantID: "p1", Response: fmt.Sprint(i % 2), TimeTaken: i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	mine, err := s.ListParticipantAnswers(ctx, qz.ID, "p1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = s.ReplaceAnswer(ctx, qz.SessionCount, quiz.Answer{QuizID: qz.ID, QuestionID: qid + 1000, ParticipantID: "p1"})
	assert.ErrorIs(t, err, quiz.ErrQuestionNotFound)

	first, created, err := s.CreateResult(ctx, quiz.Result{QuizID: qz.ID, ParticipantID: "p1", Score: 1, Total: 1, TotalPoints: 4.5})
	require.NoError(t, err)
	assert.True(t, created)
	second, created, err := s.CreateResult(ctx, quiz.Result{QuizID: qz.ID, ParticipantID: "p1", Score: 0, Total: 1})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 4.5, second.TotalPoints)

	_, err = s.LatestSnapshot(ctx, qz.ID)
	assert.ErrorIs(t, err, quiz.ErrSnapshotNotFound)
	_, err = s.InsertSnapshot(ctx, quiz.Snapshot{QuizID: qz.ID, Entries: []byte(`[]`), SourceHash: "a", GeneratedAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	_, err = s.InsertSnapshot(ctx, quiz.Snapshot{QuizID: qz.ID, Entries: []byte(`[{"rank":1}]`), SourceHash: "b"})
	require.NoError(t, err)
	latest, err := s.LatestSnapshot(ctx, qz.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.SourceHash)
	assert.JSONEq(t, `[{"rank":1}]`, string(latest.Entries))

	require.NoError(t, s.DeleteQuiz(ctx, qz.ID))
	results, err := s.ListResults(ctx, qz.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
	_, err = s.ListQuestions(ctx, qz.ID)
	assert.ErrorIs(t, err, quiz.ErrQuizNotFound)
}
