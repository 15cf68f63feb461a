// Package authoring lets hosts build quizzes before they are locked.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

const (
	maxTitleLen      = 200
	defaultPoints    = 1.0
	defaultTimeLimit = 30
	minTimeLimit     = 5
)

// QuestionInput is a question as submitted by a host.
type QuestionInput struct {
	Type            string        `json:"question_type" yaml:"type"`
	Text            string        `json:"text" yaml:"text"`
	Options         []quiz.Option `json:"options" yaml:"options"`
	Correct         []string      `json:"correct_answers" yaml:"correct"`
	Points          *float64      `json:"points" yaml:"points"`
	TimeLimit       *int          `json:"time_limit" yaml:"time_limit"`
	ShowLeaderboard *bool         `json:"show_leaderboard" yaml:"show_leaderboard"`
}

// QuizInput creates a quiz with an optional first batch of questions.
type QuizInput struct {
	Title               string          `json:"title" yaml:"title"`
	HasTimer            bool            `json:"has_timer" yaml:"has_timer"`
	OverallTimerMinutes int             `json:"overall_timer_minutes" yaml:"overall_timer_minutes"`
	ShowLeaderboard     bool            `json:"show_leaderboard" yaml:"show_leaderboard"`
	Questions           []QuestionInput `json:"questions" yaml:"questions"`
}

// Invalidator drops cached question lists.
type Invalidator interface {
	Invalidate(ctx context.Context, quizID int64) error
}

// Service implements host-side quiz authoring.
type Service struct {
	store  quiz.QuizStore
	cache  Invalidator
	logger zerolog.Logger
}

// NewService creates the authoring service. cache may be nil.
func NewService(store quiz.QuizStore, cache Invalidator, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger.With().Str("component", "authoring").Logger(),
	}
}

// CreateQuiz stores a new draft quiz owned by hostID together with its questions.
func (s *Service) CreateQuiz(ctx context.Context, hostID string, in QuizInput) (quiz.Quiz, error) {
	title, err := cleanTitle(in.Title)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if in.OverallTimerMinutes < 0 {
		return quiz.Quiz{}, quiz.Invalid("overall_timer_minutes", "overall timer must not be negative")
	}

	draft := quiz.Quiz{
		HostID:              hostID,
		Title:               title,
		HasTimer:            in.HasTimer,
		OverallTimerMinutes: in.OverallTimerMinutes,
		ShowLeaderboard:     in.ShowLeaderboard,
	}
	questions, err := BuildQuestions(draft, in.Questions)
	if err != nil {
		return quiz.Quiz{}, err
	}

	created, err := s.store.CreateQuiz(ctx, draft)
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	if len(questions) > 0 {
		stored, err := s.store.AppendQuestions(ctx, created.ID, questions)
		if err != nil {
			return quiz.Quiz{}, fmt.Errorf("add questions: %w", err)
		}
		created.Questions = stored
	}

	s.logger.Info().
		Int64("quiz_id", created.ID).
		Str("host_id", hostID).
		Int("questions", len(questions)).
		Msg("quiz created")
	return created, nil
}

// AddQuestions appends questions to a draft quiz. Orders continue after the existing ones.
func (s *Service) AddQuestions(ctx context.Context, hostID string, quizID int64, inputs []QuestionInput) ([]quiz.Question, error) {
	if len(inputs) == 0 {
		return nil, quiz.Invalid("questions", "at least one question is required")
	}
	qz, err := s.owned(ctx, hostID, quizID)
	if err != nil {
		return nil, err
	}
	if qz.IsLocked {
		return nil, quiz.ErrQuizLocked
	}
	questions, err := BuildQuestions(qz, inputs)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.AppendQuestions(ctx, quizID, questions)
	if err != nil {
		return nil, fmt.Errorf("add questions: %w", err)
	}
	s.invalidate(ctx, quizID)
	return stored, nil
}

// Lock ends editing. Locking twice is a no-op.
func (s *Service) Lock(ctx context.Context, hostID string, quizID int64) (quiz.Quiz, error) {
	qz, err := s.owned(ctx, hostID, quizID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if qz.IsLocked {
		return qz, nil
	}
	locked, err := s.store.LockQuiz(ctx, quizID)
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("lock quiz: %w", err)
	}
	s.invalidate(ctx, quizID)
	s.logger.Info().Int64("quiz_id", quizID).Msg("quiz locked")
	return locked, nil
}

// Rename changes the title. It is allowed in every state.
func (s *Service) Rename(ctx context.Context, hostID string, quizID int64, title string) (quiz.Quiz, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if _, err := s.owned(ctx, hostID, quizID); err != nil {
		return quiz.Quiz{}, err
	}
	if err := s.store.RenameQuiz(ctx, quizID, title); err != nil {
		return quiz.Quiz{}, fmt.Errorf("rename quiz: %w", err)
	}
	return s.store.GetQuiz(ctx, quizID)
}

// Delete removes a quiz that is not running, with its questions, answers and results.
func (s *Service) Delete(ctx context.Context, hostID string, quizID int64) error {
	qz, err := s.owned(ctx, hostID, quizID)
	if err != nil {
		return err
	}
	if qz.IsActive {
		return quiz.ErrAlreadyActive
	}
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.invalidate(ctx, quizID)
	s.logger.Info().Int64("quiz_id", quizID).Msg("quiz deleted")
	return nil
}

// Get returns a quiz with its questions for its host.
func (s *Service) Get(ctx context.Context, hostID string, quizID int64) (quiz.Quiz, error) {
	qz, err := s.owned(ctx, hostID, quizID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	qz.Questions, err = s.store.ListQuestions(ctx, quizID)
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("list questions: %w", err)
	}
	return qz, nil
}

func (s *Service) owned(ctx context.Context, hostID string, quizID int64) (quiz.Quiz, error) {
	qz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if hostID != "" && qz.HostID != hostID {
		return quiz.Quiz{}, quiz.ErrForbidden
	}
	return qz, nil
}

func (s *Service) invalidate(ctx context.Context, quizID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, quizID); err != nil {
		s.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("question cache invalidation failed")
	}
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return "", quiz.Invalid("title", "title is required")
	case len([]rune(title)) > maxTitleLen:
		return "", quiz.Invalid("title", fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	return title, nil
}

// BuildQuestions validates inputs against the quiz settings and applies defaults.
// The field of a returned ValidationError is prefixed with the question position.
func BuildQuestions(qz quiz.Quiz, inputs []QuestionInput) ([]quiz.Question, error) {
	questions := make([]quiz.Question, 0, len(inputs))
	for i, in := range inputs {
		q, err := buildQuestion(qz, in)
		if err != nil {
			var verr *quiz.ValidationError
			if errors.As(err, &verr) {
				return nil, quiz.Invalid(fmt.Sprintf("questions[%d].%s", i, verr.Field), verr.Message)
			}
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func buildQuestion(qz quiz.Quiz, in QuestionInput) (quiz.Question, error) {
	q := quiz.Question{
		Type:            quiz.ParseQuestionType(in.Type),
		Text:            strings.TrimSpace(in.Text),
		Points:          defaultPoints,
		ShowLeaderboard: true,
	}
	if q.Text == "" {
		return quiz.Question{}, quiz.Invalid("text", "question text is required")
	}
	if !q.Type.Known() {
		return quiz.Question{}, quiz.Invalid("question_type", fmt.Sprintf("unknown question type %q", in.Type))
	}
	if in.Points != nil {
		if *in.Points < 0 {
			return quiz.Question{}, quiz.Invalid("points", "points must not be negative")
		}
		q.Points = *in.Points
	}
	if in.ShowLeaderboard != nil {
		q.ShowLeaderboard = *in.ShowLeaderboard
	}
	if qz.HasTimer {
		q.TimeLimit = defaultTimeLimit
		if in.TimeLimit != nil {
			q.TimeLimit = max(*in.TimeLimit, minTimeLimit)
		}
	}

	if q.Type.IsChoice() {
		return buildChoice(q, in)
	}

	for _, answer := range in.Correct {
		if answer = strings.TrimSpace(answer); answer != "" {
			q.CorrectAnswers = append(q.CorrectAnswers, answer)
		}
	}
	if len(q.CorrectAnswers) == 0 {
		return quiz.Question{}, quiz.Invalid("correct_answers", "at least one accepted answer is required")
	}
	return q, nil
}

func buildChoice(q quiz.Question, in QuestionInput) (quiz.Question, error) {
	for _, opt := range in.Options {
		opt.Text = strings.TrimSpace(opt.Text)
		if opt.Text == "" && opt.ImageURL == "" {
			return quiz.Question{}, quiz.Invalid("options", "options need text or an image")
		}
		q.Options = append(q.Options, opt)
	}
	if len(q.Options) < 2 {
		return quiz.Question{}, quiz.Invalid("options", "at least two options are required")
	}

	seen := make(map[int]bool, len(in.Correct))
	for _, marker := range in.Correct {
		idx, err := strconv.Atoi(strings.TrimSpace(marker))
		if err != nil || idx < 0 || idx >= len(q.Options) {
			return quiz.Question{}, quiz.Invalid("correct_answers", fmt.Sprintf("%q is not an option index", marker))
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		q.CorrectAnswers = append(q.CorrectAnswers, strconv.Itoa(idx))
	}
	switch {
	case len(q.CorrectAnswers) == 0:
		return quiz.Question{}, quiz.Invalid("correct_answers", "at least one correct option is required")
	case q.Type == quiz.TypeSingleChoice && len(q.CorrectAnswers) != 1:
		return quiz.Question{}, quiz.Invalid("correct_answers", "single choice questions take exactly one correct option")
	}
	return q, nil
}
