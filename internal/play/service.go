// Package play serves participants: joining, question delivery and answer submission.
package play

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/leaderboard"
	"github.com/gokatarajesh/livequiz/internal/metrics"
	"github.com/gokatarajesh/livequiz/internal/quiz"
	"github.com/gokatarajesh/livequiz/internal/scoring"
	"github.com/gokatarajesh/livequiz/internal/session"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Store is the persistence a participant flow touches.
type Store interface {
	GetQuiz(ctx context.Context, id int64) (quiz.Quiz, error)
	GetQuizByJoinCode(ctx context.Context, code string) (quiz.Quiz, error)
	quiz.AnswerStore
	quiz.ResultStore
}

// SessionReader exposes the live state of running quizzes.
type SessionReader interface {
	Current(ctx context.Context, quizID int64) (session.State, bool)
}

// Leaderboard computes standings and pushes updates after submissions.
type Leaderboard interface {
	Standings(ctx context.Context, qz quiz.Quiz) ([]leaderboard.Entry, error)
	PublishUpdate(ctx context.Context, qz quiz.Quiz, question *quiz.Question)
}

// ServiceOptions configures the participant service.
type ServiceOptions struct {
	Now func() time.Time
}

// Service implements the participant side of a live quiz.
type Service struct {
	store       Store
	questions   quiz.QuestionLoader
	engine      *scoring.Engine
	sessions    SessionReader
	leaderboard Leaderboard
	now         func() time.Time
	logger      zerolog.Logger
}

// NewService wires the participant service. sessions and board may be nil.
func NewService(store Store, questions quiz.QuestionLoader, engine *scoring.Engine, sessions SessionReader, board Leaderboard, opts ServiceOptions, logger zerolog.Logger) *Service {
	if engine == nil {
		engine = scoring.NewEngine(scoring.DefaultScoringConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:       store,
		questions:   questions,
		engine:      engine,
		sessions:    sessions,
		leaderboard: board,
		now:         opts.Now,
		logger:      logger.With().Str("component", "play").Logger(),
	}
}

// JoinInfo is what a participant learns from a join code.
type JoinInfo struct {
	QuizID          int64  `json:"quiz_id"`
	Title           string `json:"title"`
	IsActive        bool   `json:"is_active"`
	HasTimer        bool   `json:"has_timer"`
	ShowLeaderboard bool   `json:"show_leaderboard"`
}

// JoinByCode resolves a join code to a published quiz.
func (s *Service) JoinByCode(ctx context.Context, code string) (JoinInfo, error) {
	code = quiz.NormalizeJoinCode(code)
	if code == "" || !quiz.ValidJoinCode(code) {
		return JoinInfo{}, quiz.Invalid("join_code", "join code is malformed")
	}
	qz, err := s.store.GetQuizByJoinCode(ctx, code)
	if err != nil {
		return JoinInfo{}, err
	}
	if !qz.IsPublished {
		return JoinInfo{}, quiz.ErrQuizNotFound
	}
	return JoinInfo{
		QuizID:          qz.ID,
		Title:           qz.Title,
		IsActive:        qz.IsActive,
		HasTimer:        qz.HasTimer,
		ShowLeaderboard: qz.ShowLeaderboard,
	}, nil
}

// QuestionView is a question as shown to participants, without its correct answers.
type QuestionView struct {
	QuizID          int64             `json:"quiz_id"`
	QuestionID      int64             `json:"question_id"`
	Index           int               `json:"qindex"`
	Total           int               `json:"total_questions"`
	Type            quiz.QuestionType `json:"question_type"`
	Text            string            `json:"text"`
	Options         []quiz.Option     `json:"options,omitempty"`
	Points          float64           `json:"points"`
	TimeLimit       int               `json:"time_limit,omitempty"`
	IsLast          bool              `json:"is_last"`
	ShowLeaderboard bool              `json:"show_leaderboard"`
}

// CurrentQuestion returns the question a participant should see. Timed quizzes follow the
// host's current index; untimed quizzes are self-paced and use requested.
func (s *Service) CurrentQuestion(ctx context.Context, quizID int64, requested int) (QuestionView, error) {
	qz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return QuestionView{}, err
	}
	if !qz.IsActive {
		return QuestionView{}, quiz.ErrNotActive
	}
	questions, err := s.questions.ListQuestions(ctx, quizID)
	if err != nil {
		return QuestionView{}, fmt.Errorf("list questions: %w", err)
	}

	index := requested
	if qz.HasTimer {
		index = 0
		if s.sessions != nil {
			if st, ok := s.sessions.Current(ctx, quizID); ok {
				index = st.QuestionIndex
			}
		}
	}
	if index < 0 || index >= len(questions) {
		return QuestionView{}, quiz.ErrQuestionNotFound
	}

	q := questions[index]
	view := QuestionView{
		QuizID:          qz.ID,
		QuestionID:      q.ID,
		Index:           index,
		Total:           len(questions),
		Type:            q.Type,
		Text:            q.Text,
		Options:         q.Options,
		Points:          q.Points,
		IsLast:          index == len(questions)-1,
		ShowLeaderboard: qz.LeaderboardVisible(q),
	}
	if qz.HasTimer {
		view.TimeLimit = q.TimeLimit
	}
	return view, nil
}

// Submission is one answer sent by a participant.
type Submission struct {
	QuizID          int64
	QuestionID      int64
	ParticipantID   string
	ParticipantName string
	Answer          string
	Selections      []string
	TimeTaken       int
}

// Feedback is returned to the participant after a submission.
type Feedback struct {
	QuizID          int64        `json:"quiz_id"`
	QuestionID      int64        `json:"question_id"`
	IsCorrect       bool         `json:"is_correct"`
	CorrectAnswer   string       `json:"correct_answer"`
	Points          float64      `json:"points"`
	Bonus           float64      `json:"bonus"`
	StudentComplete bool         `json:"student_complete"`
	NextQuestion    *int         `json:"next_question"`
	ShowLeaderboard bool         `json:"show_leaderboard"`
	Result          *quiz.Result `json:"result,omitempty"`
}

// Ack renders the feedback as a websocket payload.
func (f Feedback) Ack() ws.AnswerAckPayload {
	return ws.AnswerAckPayload{
		QuizID:          f.QuizID,
		QuestionID:      f.QuestionID,
		IsCorrect:       f.IsCorrect,
		CorrectAnswer:   f.CorrectAnswer,
		Points:          f.Points,
		Bonus:           f.Bonus,
		StudentComplete: f.StudentComplete,
		NextQuestion:    f.NextQuestion,
		ShowLeaderboard: f.ShowLeaderboard,
	}
}

// Submit grades and stores an answer. A resubmission for the same question replaces the
// previous answer. Answering the last question creates the participant's result once.
func (s *Service) Submit(ctx context.Context, sub Submission) (Feedback, error) {
	if strings.TrimSpace(sub.ParticipantID) == "" {
		return Feedback{}, quiz.Invalid("participant_id", "participant is required")
	}
	if sub.QuestionID <= 0 {
		return Feedback{}, quiz.Invalid("question_id", "question is required")
	}
	if sub.TimeTaken < 0 {
		return Feedback{}, quiz.Invalid("time_taken", "time taken must not be negative")
	}

	qz, err := s.store.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return Feedback{}, err
	}
	if !qz.IsActive {
		return Feedback{}, quiz.ErrNotActive
	}
	if qz.IsPaused {
		return Feedback{}, quiz.ErrQuizPaused
	}

	questions, err := s.questions.ListQuestions(ctx, qz.ID)
	if err != nil {
		return Feedback{}, fmt.Errorf("list questions: %w", err)
	}
	index := findQuestion(questions, sub.QuestionID)
	if index < 0 {
		return Feedback{}, quiz.ErrQuestionNotFound
	}
	q := questions[index]

	resp, err := scoring.ParseResponse(q, sub.Answer, sub.Selections)
	if err != nil {
		return Feedback{}, err
	}
	correct := scoring.Validate(q, resp)
	points := s.engine.CalculateScore(q, correct, resp, sub.TimeTaken, qz)

	if _, err := s.store.ReplaceAnswer(ctx, qz.SessionCount, quiz.Answer{
		QuizID:          qz.ID,
		QuestionID:      q.ID,
		ParticipantID:   sub.ParticipantID,
		ParticipantName: sub.ParticipantName,
		Response:        resp.Encode(),
		IsCorrect:       correct,
		TimeTaken:       sub.TimeTaken,
		Points:          points,
		SubmittedAt:     s.now().UTC(),
	}); err != nil {
		return Feedback{}, fmt.Errorf("store answer: %w", err)
	}
	metrics.AnswersSubmitted.WithLabelValues(strconv.FormatBool(correct)).Inc()

	feedback := Feedback{
		QuizID:          qz.ID,
		QuestionID:      q.ID,
		IsCorrect:       correct,
		CorrectAnswer:   scoring.CorrectAnswerText(q),
		Points:          points,
		ShowLeaderboard: qz.LeaderboardVisible(q),
	}

	if scoring.BonusesApply(qz) && correct {
		answers, err := s.store.ListQuestionAnswers(ctx, qz.ID, q.ID)
		if err != nil {
			return Feedback{}, fmt.Errorf("list question answers: %w", err)
		}
		feedback.Bonus = s.engine.RankBonuses(answers)[sub.ParticipantID]
	}

	if index == len(questions)-1 {
		feedback.StudentComplete = true
		result, err := s.finish(ctx, qz, len(questions), sub)
		if err != nil {
			return Feedback{}, err
		}
		feedback.Result = &result
	} else {
		next := index + 1
		feedback.NextQuestion = &next
	}

	s.logger.Debug().
		Int64("quiz_id", qz.ID).
		Int64("question_id", q.ID).
		Str("participant_id", sub.ParticipantID).
		Bool("correct", correct).
		Float64("points", points).
		Msg("answer recorded")

	if s.leaderboard != nil {
		s.leaderboard.PublishUpdate(ctx, qz, &q)
	}
	return feedback, nil
}

// finish creates the participant's result unless one exists already.
// Rank bonuses depend on every participant's answers; without them only the caller's are read.
func (s *Service) finish(ctx context.Context, qz quiz.Quiz, total int, sub Submission) (quiz.Result, error) {
	var (
		answers []quiz.Answer
		err     error
	)
	if scoring.BonusesApply(qz) {
		answers, err = s.store.ListAnswers(ctx, qz.ID)
	} else {
		answers, err = s.store.ListParticipantAnswers(ctx, qz.ID, sub.ParticipantID)
	}
	if err != nil {
		return quiz.Result{}, fmt.Errorf("list answers: %w", err)
	}

	result := quiz.Result{
		QuizID:          qz.ID,
		ParticipantID:   sub.ParticipantID,
		ParticipantName: sub.ParticipantName,
		Total:           total,
	}
	for _, a := range s.engine.ScoreAnswers(qz, answers) {
		if a.ParticipantID != sub.ParticipantID {
			continue
		}
		if a.IsCorrect {
			result.Score++
		}
		result.TimeTaken += a.TimeTaken
		result.TotalPoints += a.Total()
	}
	result.TotalPoints = math.Round(result.TotalPoints*100) / 100

	stored, created, err := s.store.CreateResult(ctx, result)
	if err != nil {
		return quiz.Result{}, fmt.Errorf("create result: %w", err)
	}
	if created {
		metrics.ResultsCreated.Inc()
		s.logger.Info().
			Int64("quiz_id", qz.ID).
			Str("participant_id", sub.ParticipantID).
			Int("score", stored.Score).
			Int("total", stored.Total).
			Float64("total_points", stored.TotalPoints).
			Msg("result created")
	}
	return stored, nil
}

// Stats is a participant's own standing.
type Stats struct {
	QuizID         int64   `json:"quiz_id"`
	ParticipantID  string  `json:"participant_id"`
	Answered       int     `json:"answered"`
	Correct        int     `json:"correct"`
	Points         float64 `json:"points"`
	TotalTime      int     `json:"time"`
	TotalQuestions int     `json:"total_questions"`
	Rank           int     `json:"rank,omitempty"`
	Participants   int     `json:"participants"`
}

// MyStats reports the participant's totals and rank. Rank is zero before the first answer.
func (s *Service) MyStats(ctx context.Context, quizID int64, participantID string) (Stats, error) {
	qz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Stats{}, err
	}
	questions, err := s.questions.ListQuestions(ctx, quizID)
	if err != nil {
		return Stats{}, fmt.Errorf("list questions: %w", err)
	}

	stats := Stats{QuizID: quizID, ParticipantID: participantID, TotalQuestions: len(questions)}
	var standings []leaderboard.Entry
	if s.leaderboard != nil {
		standings, err = s.leaderboard.Standings(ctx, qz)
	} else {
		var answers []quiz.Answer
		answers, err = s.store.ListAnswers(ctx, quizID)
		if err == nil {
			standings = leaderboard.Rank(s.engine.ScoreAnswers(qz, answers), len(questions))
		}
	}
	if err != nil {
		return Stats{}, fmt.Errorf("collect standings: %w", err)
	}

	stats.Participants = len(standings)
	for _, e := range standings {
		if e.ParticipantID != participantID {
			continue
		}
		stats.Answered = e.Answered
		stats.Correct = e.Correct
		stats.Points = e.Points
		stats.TotalTime = e.TotalTime
		stats.Rank = e.Rank
		break
	}
	return stats, nil
}

func findQuestion(questions []quiz.Question, id int64) int {
	for i, q := range questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}
