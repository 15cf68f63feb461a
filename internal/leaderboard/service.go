package leaderboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/metrics"
	"github.com/gokatarajesh/livequiz/internal/quiz"
	"github.com/gokatarajesh/livequiz/internal/scoring"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Entry is one participant's standing in a quiz.
type Entry struct {
	Rank           int     `json:"rank"`
	ParticipantID  string  `json:"participant_id"`
	Name           string  `json:"name"`
	Points         float64 `json:"points"`
	Correct        int     `json:"correct"`
	Answered       int     `json:"answered"`
	TotalQuestions int     `json:"total_questions"`
	TotalTime      int     `json:"time"`
	AvgTime        float64 `json:"avg_time"`
}

// QuestionEntry is one correct respondent on a question leaderboard.
type QuestionEntry struct {
	Rank          int       `json:"rank"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	TimeTaken     int       `json:"time_taken"`
	Points        float64   `json:"points"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AnswerReader is the slice of the answer store the leaderboard reads.
type AnswerReader interface {
	ListAnswers(ctx context.Context, quizID int64) ([]quiz.Answer, error)
	ListQuestionAnswers(ctx context.Context, quizID, questionID int64) ([]quiz.Answer, error)
}

// Publisher fans leaderboard updates out to connected clients.
type Publisher interface {
	Publish(ctx context.Context, update ws.LeaderboardUpdatePayload) error
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN         int
	QuestionTopN int
	Now          func() time.Time
}

// Service computes standings from stored answers. Nothing is cached: every read
// reflects the answers as persisted, with rank bonuses derived on the fly.
type Service struct {
	answers      AnswerReader
	questions    quiz.QuestionLoader
	engine       *scoring.Engine
	publisher    Publisher
	topN         int
	questionTopN int
	now          func() time.Time
	logger       zerolog.Logger
}

// NewService constructs a leaderboard service instance. publisher may be nil.
func NewService(answers AnswerReader, questions quiz.QuestionLoader, engine *scoring.Engine, publisher Publisher, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.QuestionTopN <= 0 {
		opts.QuestionTopN = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if engine == nil {
		engine = scoring.NewEngine(scoring.DefaultScoringConfig())
	}

	return &Service{
		answers:      answers,
		questions:    questions,
		engine:       engine,
		publisher:    publisher,
		topN:         opts.TopN,
		questionTopN: opts.QuestionTopN,
		now:          opts.Now,
		logger:       logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Leaderboard returns the quiz standings, or nothing when the quiz hides its leaderboard.
func (s *Service) Leaderboard(ctx context.Context, qz quiz.Quiz) ([]Entry, error) {
	if !qz.ShowLeaderboard {
		return []Entry{}, nil
	}
	return s.Standings(ctx, qz)
}

// Standings ranks every participant regardless of visibility flags. Host views use it.
func (s *Service) Standings(ctx context.Context, qz quiz.Quiz) ([]Entry, error) {
	answers, err := s.answers.ListAnswers(ctx, qz.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	questions, err := s.questions.ListQuestions(ctx, qz.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return Rank(s.engine.ScoreAnswers(qz, answers), len(questions)), nil
}

// QuestionLeaderboard lists the fastest correct respondents on one question.
// Both the quiz and the question must allow leaderboards.
func (s *Service) QuestionLeaderboard(ctx context.Context, qz quiz.Quiz, question quiz.Question) ([]QuestionEntry, error) {
	if !qz.LeaderboardVisible(question) {
		return []QuestionEntry{}, nil
	}
	answers, err := s.answers.ListQuestionAnswers(ctx, qz.ID, question.ID)
	if err != nil {
		return nil, fmt.Errorf("list question answers: %w", err)
	}
	return RankQuestion(s.engine.ScoreAnswers(qz, answers), s.questionTopN), nil
}

// PublishUpdate pushes the current standings, and the question board when visible, to the quiz room.
// Failures are logged and counted; they never fail the submission that triggered them.
func (s *Service) PublishUpdate(ctx context.Context, qz quiz.Quiz, question *quiz.Question) {
	if s.publisher == nil || !qz.ShowLeaderboard {
		return
	}

	top, err := s.Leaderboard(ctx, qz)
	if err != nil {
		metrics.LeaderboardPublishFailures.Inc()
		s.logger.Warn().Err(err).Int64("quiz_id", qz.ID).Msg("failed to collect leaderboard update")
		return
	}
	if len(top) > s.topN {
		top = top[:s.topN]
	}

	update := ws.LeaderboardUpdatePayload{
		QuizID:   qz.ID,
		Top:      toWSEntries(top),
		IssuedAt: s.now().UTC(),
	}
	if question != nil && qz.LeaderboardVisible(*question) {
		board, err := s.QuestionLeaderboard(ctx, qz, *question)
		if err != nil {
			s.logger.Warn().Err(err).Int64("question_id", question.ID).Msg("failed to collect question leaderboard")
		} else {
			update.QuestionID = question.ID
			update.Question = toWSQuestionEntries(board)
		}
	}

	if err := s.publisher.Publish(ctx, update); err != nil {
		metrics.LeaderboardPublishFailures.Inc()
		s.logger.Warn().Err(err).Int64("quiz_id", qz.ID).Msg("failed to publish leaderboard update")
	}
}

// Rank groups scored answers by participant. Order: points desc, correct desc, total time asc,
// then participant id so equal standings are stable. Ranks are positions 1..n.
func Rank(scored []scoring.ScoredAnswer, totalQuestions int) []Entry {
	byParticipant := make(map[string]*Entry)
	for _, a := range scored {
		e, ok := byParticipant[a.ParticipantID]
		if !ok {
			e = &Entry{ParticipantID: a.ParticipantID, TotalQuestions: totalQuestions}
			byParticipant[a.ParticipantID] = e
		}
		if a.ParticipantName != "" {
			e.Name = a.ParticipantName
		}
		e.Points += a.Total()
		e.Answered++
		e.TotalTime += a.TimeTaken
		if a.IsCorrect {
			e.Correct++
		}
	}

	entries := make([]Entry, 0, len(byParticipant))
	for _, e := range byParticipant {
		e.Points = round2(e.Points)
		if e.Answered > 0 {
			e.AvgTime = round2(float64(e.TotalTime) / float64(e.Answered))
		}
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Correct != b.Correct {
			return a.Correct > b.Correct
		}
		if a.TotalTime != b.TotalTime {
			return a.TotalTime < b.TotalTime
		}
		return a.ParticipantID < b.ParticipantID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RankQuestion keeps correct answers only, ordered by time taken then submission time, capped at limit.
func RankQuestion(scored []scoring.ScoredAnswer, limit int) []QuestionEntry {
	correct := make([]quiz.Answer, 0, len(scored))
	totals := make(map[string]float64, len(scored))
	for _, a := range scored {
		if a.IsCorrect {
			correct = append(correct, a.Answer)
			totals[a.ParticipantID] = a.Total()
		}
	}
	scoring.SortByPace(correct)
	if limit > 0 && len(correct) > limit {
		correct = correct[:limit]
	}

	entries := make([]QuestionEntry, len(correct))
	for i, a := range correct {
		entries[i] = QuestionEntry{
			Rank:          i + 1,
			ParticipantID: a.ParticipantID,
			Name:          a.ParticipantName,
			TimeTaken:     a.TimeTaken,
			Points:        round2(totals[a.ParticipantID]),
			SubmittedAt:   a.SubmittedAt,
		}
	}
	return entries
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
