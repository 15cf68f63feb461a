package leaderboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/livequiz/internal/db/memstore"
	"github.com/gokatarajesh/livequiz/internal/quiz"
	"github.com/gokatarajesh/livequiz/internal/scoring"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type capturePublisher struct {
	mu      sync.Mutex
	updates []ws.LeaderboardUpdatePayload
}

func (p *capturePublisher) Publish(_ context.Context, update ws.LeaderboardUpdatePayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
	return nil
}

type fixture struct {
	store     *memstore.Store
	svc       *Service
	pub       *capturePublisher
	quiz      quiz.Quiz
	questions []quiz.Question
}

func newFixture(t *testing.T, mutate func(q *quiz.Quiz)) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New().WithClock(func() time.Time { return baseTime })

	q := quiz.Quiz{HostID: "host-1", Title: "Capitals", HasTimer: true, ShowLeaderboard: true}
	if mutate != nil {
		mutate(&q)
	}
	qz, err := store.CreateQuiz(ctx, q)
	require.NoError(t, err)

	questions, err := store.AppendQuestions(ctx, qz.ID, []quiz.Question{
		{Type: quiz.TypeShortAnswer, Text: "Capital of France", CorrectAnswers: []string{"paris"}, Points: 1, TimeLimit: 30, ShowLeaderboard: true},
		{Type: quiz.TypeShortAnswer, Text: "Capital of Peru", CorrectAnswers: []string{"lima"}, Points: 1, TimeLimit: 30},
	})
	require.NoError(t, err)
	_, err = store.LockQuiz(ctx, qz.ID)
	require.NoError(t, err)
	_, err = store.PublishQuiz(ctx, qz.ID, "ABC123", baseTime)
	require.NoError(t, err)
	qz, err = store.ActivateQuiz(ctx, qz.ID)
	require.NoError(t, err)

	pub := &capturePublisher{}
	svc := NewService(store, store, nil, pub, ServiceOptions{Now: func() time.Time { return baseTime }}, zerolog.Nop())
	return &fixture{store: store, svc: svc, pub: pub, quiz: qz, questions: questions}
}

func (f *fixture) answer(t *testing.T, question int, participant string, correct bool, timeTaken int, points float64) {
	t.Helper()
	_, err := f.store.ReplaceAnswer(context.Background(), f.quiz.SessionCount, quiz.Answer{
		QuizID:          f.quiz.ID,
		QuestionID:      f.questions[question].ID,
		ParticipantID:   participant,
		ParticipantName: "name-" + participant,
		IsCorrect:       correct,
		TimeTaken:       timeTaken,
		Points:          points,
		SubmittedAt:     baseTime.Add(time.Duration(timeTaken) * time.Second),
	})
	require.NoError(t, err)
}

func TestRank_FasterTotalTimeWinsTie(t *testing.T) {
	scored := []scoring.ScoredAnswer{
		{Answer: quiz.Answer{ParticipantID: "A", QuestionID: 1, IsCorrect: true, TimeTaken: 20, Points: 4}},
		{Answer: quiz.Answer{ParticipantID: "A", QuestionID: 2, IsCorrect: true, TimeTaken: 20, Points: 3}},
		{Answer: quiz.Answer{ParticipantID: "A", QuestionID: 3, IsCorrect: true, TimeTaken: 10, Points: 3}},
		{Answer: quiz.Answer{ParticipantID: "B", QuestionID: 1, IsCorrect: true, TimeTaken: 10, Points: 4}},
		{Answer: quiz.Answer{ParticipantID: "B", QuestionID: 2, IsCorrect: true, TimeTaken: 20, Points: 3}},
		{Answer: quiz.Answer{ParticipantID: "B", QuestionID: 3, IsCorrect: true, TimeTaken: 10, Points: 3}},
	}

	entries := Rank(scored, 3)
	require.Len(t, entries, 2)
	assert.Equal(t, "B", entries[0].ParticipantID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 40, entries[0].TotalTime)
	assert.Equal(t, "A", entries[1].ParticipantID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 50, entries[1].TotalTime)
	assert.Equal(t, 10.0, entries[1].Points)
	assert.Equal(t, 3, entries[1].Correct)
	assert.Equal(t, 3, entries[1].TotalQuestions)
}

func TestRank_OrderKeys(t *testing.T) {
	scored := []scoring.ScoredAnswer{
		{Answer: quiz.Answer{ParticipantID: "low", IsCorrect: true, TimeTaken: 1, Points: 1}},
		{Answer: quiz.Answer{ParticipantID: "bonus", IsCorrect: true, TimeTaken: 9, Points: 1}, Bonus: 3},
		{Answer: quiz.Answer{ParticipantID: "more-correct", IsCorrect: true, TimeTaken: 5, Points: 2}},
		{Answer: quiz.Answer{ParticipantID: "more-correct", QuestionID: 2, IsCorrect: true, TimeTaken: 5, Points: 0}},
		{Answer: quiz.Answer{ParticipantID: "fewer-correct", IsCorrect: true, TimeTaken: 1, Points: 2}},
		{Answer: quiz.Answer{ParticipantID: "fewer-correct", QuestionID: 2, IsCorrect: false, TimeTaken: 1}},
	}

	entries := Rank(scored, 2)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ParticipantID
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, []string{"bonus", "more-correct", "fewer-correct", "low"}, ids)
	assert.Equal(t, 4.0, entries[0].Points)
	assert.Equal(t, 5.0, entries[1].AvgTime)
}

func TestRankQuestion_CorrectOnlyOrderedAndCapped(t *testing.T) {
	var scored []scoring.ScoredAnswer
	for i := 0; i < 12; i++ {
		scored = append(scored, scoring.ScoredAnswer{Answer: quiz.Answer{
			ParticipantID: string(rune('a' + i)),
			IsCorrect:     true,
			TimeTaken:     20 - i,
			Points:        1,
			SubmittedAt:   baseTime,
		}})
	}
	scored = append(scored, scoring.ScoredAnswer{Answer: quiz.Answer{ParticipantID: "wrong", TimeTaken: 0}})
	// same time, earlier submission wins
	scored = append(scored, scoring.ScoredAnswer{Answer: quiz.Answer{
		ParticipantID: "early", IsCorrect: true, TimeTaken: 9, Points: 1, SubmittedAt: baseTime.Add(-time.Second),
	}})

	entries := RankQuestion(scored, 10)
	require.Len(t, entries, 10)
	assert.Equal(t, "early", entries[0].ParticipantID)
	assert.Equal(t, 9, entries[0].TimeTaken)
	assert.Equal(t, "l", entries[1].ParticipantID)
	assert.Equal(t, 9, entries[1].TimeTaken)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		assert.NotEqual(t, "wrong", e.ParticipantID)
	}
}

func TestLeaderboard_HiddenWhenQuizFlagUnset(t *testing.T) {
	f := newFixture(t, func(q *quiz.Quiz) { q.ShowLeaderboard = false })
	f.answer(t, 0, "p1", true, 5, 1.5)

	entries, err := f.svc.Leaderboard(context.Background(), f.quiz)
	require.NoError(t, err)
	assert.Empty(t, entries)

	standings, err := f.svc.Standings(context.Background(), f.quiz)
	require.NoError(t, err)
	assert.Len(t, standings, 1)
}

func TestLeaderboard_IncludesDerivedBonuses(t *testing.T) {
	f := newFixture(t, nil)
	f.answer(t, 0, "p1", true, 5, 1.5)
	f.answer(t, 0, "p2", true, 10, 1.5)
	f.answer(t, 0, "p3", true, 20, 1.0)
	f.answer(t, 0, "p4", true, 25, 1.0)
	f.answer(t, 0, "p5", false, 1, 0)

	ctx := context.Background()
	first, err := f.svc.Leaderboard(ctx, f.quiz)
	require.NoError(t, err)
	require.Len(t, first, 5)
	assert.Equal(t, "p1", first[0].ParticipantID)
	assert.Equal(t, 4.5, first[0].Points)
	assert.Equal(t, 3.5, first[1].Points)
	assert.Equal(t, 2.0, first[2].Points)
	assert.Equal(t, 1.0, first[3].Points)
	assert.Equal(t, 0.0, first[4].Points)
	assert.Equal(t, "name-p1", first[0].Name)

	second, err := f.svc.Leaderboard(ctx, f.quiz)
	require.NoError(t, err)
	assert.Equal(t, first, second, "reading twice never awards twice")
}

func TestLeaderboard_UntimedQuizHasNoBonuses(t *testing.T) {
	f := newFixture(t, func(q *quiz.Quiz) { q.HasTimer = false })
	f.answer(t, 0, "p1", true, 5, 1)

	entries, err := f.svc.Leaderboard(context.Background(), f.quiz)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1.0, entries[0].Points)
}

func TestQuestionLeaderboard_FlagsAreAnded(t *testing.T) {
	f := newFixture(t, nil)
	f.answer(t, 0, "p1", true, 5, 1.5)
	f.answer(t, 1, "p1", true, 5, 1.5)
	ctx := context.Background()

	board, err := f.svc.QuestionLeaderboard(ctx, f.quiz, f.questions[0])
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 4.5, board[0].Points)

	board, err = f.svc.QuestionLeaderboard(ctx, f.quiz, f.questions[1])
	require.NoError(t, err)
	assert.Empty(t, board, "question flag unset")

	hidden := f.quiz
	hidden.ShowLeaderboard = false
	board, err = f.svc.QuestionLeaderboard(ctx, hidden, f.questions[0])
	require.NoError(t, err)
	assert.Empty(t, board, "quiz flag unset")
}

func TestPublishUpdate(t *testing.T) {
	f := newFixture(t, nil)
	f.answer(t, 0, "p1", true, 5, 1.5)
	ctx := context.Background()

	f.svc.PublishUpdate(ctx, f.quiz, &f.questions[0])
	require.Len(t, f.pub.updates, 1)
	update := f.pub.updates[0]
	assert.Equal(t, f.quiz.ID, update.QuizID)
	require.Len(t, update.Top, 1)
	assert.Equal(t, 4.5, update.Top[0].Points)
	assert.Equal(t, f.questions[0].ID, update.QuestionID)
	assert.Len(t, update.Question, 1)
	assert.Equal(t, baseTime, update.IssuedAt)

	f.svc.PublishUpdate(ctx, f.quiz, &f.questions[1])
	require.Len(t, f.pub.updates, 2)
	assert.Zero(t, f.pub.updates[1].QuestionID)
	assert.Empty(t, f.pub.updates[1].Question)

	hidden := f.quiz
	hidden.ShowLeaderboard = false
	f.svc.PublishUpdate(ctx, hidden, nil)
	assert.Len(t, f.pub.updates, 2)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t, nil)
	f.answer(t, 0, "p1", true, 6, 1.5)
	f.answer(t, 0, "p2", true, 10, 1.2)
	f.answer(t, 0, "p3", false, 20, 0)
	f.answer(t, 1, "p1", false, 9, 0)

	report, err := f.svc.Analytics(context.Background(), f.quiz)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Participants)
	assert.Equal(t, 4, report.TotalAnswers)
	assert.Equal(t, 50, report.AccuracyRate)
	assert.Equal(t, 11, report.AvgTime)
	assert.Equal(t, 2, report.TotalQuestions)
	assert.Equal(t, 2.0, report.TotalPoints)

	require.Len(t, report.Questions, 2)
	q0 := report.Questions[0]
	assert.Equal(t, 3, q0.Attempts)
	assert.Equal(t, 2, q0.Correct)
	assert.Equal(t, 66, q0.CorrectPct)
	assert.Equal(t, 12, q0.AvgTime)
	assert.Equal(t, DifficultyMedium, q0.Difficulty)
	assert.Equal(t, DifficultyHard, report.Questions[1].Difficulty)

	require.Len(t, report.Top, 3)
	assert.Equal(t, "p1", report.Top[0].ParticipantID)
}

func TestDifficulty(t *testing.T) {
	tests := []struct {
		pct  int
		want string
	}{
		{100, DifficultyEasy},
		{71, DifficultyEasy},
		{70, DifficultyMedium},
		{41, DifficultyMedium},
		{40, DifficultyHard},
		{0, DifficultyHard},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Difficulty(tt.pct), tt.pct)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}
