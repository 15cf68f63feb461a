package leaderboard

import (
	"context"
	"fmt"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// Difficulty labels derived from the share of correct answers.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

const analyticsTopN = 5

// QuestionStats summarises the answers to one question.
type QuestionStats struct {
	QuestionID int64             `json:"question_id"`
	Order      int               `json:"order"`
	Text       string            `json:"text"`
	Type       quiz.QuestionType `json:"question_type"`
	Points     float64           `json:"points"`
	Attempts   int               `json:"total_attempts"`
	Correct    int               `json:"correct_count"`
	CorrectPct int               `json:"correct_pct"`
	AvgTime    int               `json:"avg_time"`
	Difficulty string            `json:"difficulty"`
}

// Analytics is the host's post-session report.
type Analytics struct {
	QuizID         int64           `json:"quiz_id"`
	Participants   int             `json:"total_participants"`
	TotalAnswers   int             `json:"total_answers"`
	AccuracyRate   int             `json:"accuracy_rate"`
	AvgTime        int             `json:"avg_time"`
	TotalQuestions int             `json:"total_questions"`
	TotalPoints    float64         `json:"total_points"`
	Questions      []QuestionStats `json:"questions"`
	Top            []Entry         `json:"top"`
}

// Difficulty classifies a question by its correct percentage.
func Difficulty(correctPct int) string {
	switch {
	case correctPct > 70:
		return DifficultyEasy
	case correctPct > 40:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// Analytics builds the host report. Percentages and averages are truncated to whole numbers.
func (s *Service) Analytics(ctx context.Context, qz quiz.Quiz) (Analytics, error) {
	answers, err := s.answers.ListAnswers(ctx, qz.ID)
	if err != nil {
		return Analytics{}, fmt.Errorf("list answers: %w", err)
	}
	questions, err := s.questions.ListQuestions(ctx, qz.ID)
	if err != nil {
		return Analytics{}, fmt.Errorf("list questions: %w", err)
	}

	report := Analytics{QuizID: qz.ID, TotalAnswers: len(answers), TotalQuestions: len(questions)}

	participants := make(map[string]struct{})
	type tally struct{ attempts, correct, time int }
	perQuestion := make(map[int64]*tally, len(questions))
	correct, totalTime := 0, 0
	for _, a := range answers {
		participants[a.ParticipantID] = struct{}{}
		t, ok := perQuestion[a.QuestionID]
		if !ok {
			t = &tally{}
			perQuestion[a.QuestionID] = t
		}
		t.attempts++
		t.time += a.TimeTaken
		totalTime += a.TimeTaken
		if a.IsCorrect {
			t.correct++
			correct++
		}
	}
	report.Participants = len(participants)
	if len(answers) > 0 {
		report.AccuracyRate = correct * 100 / len(answers)
		report.AvgTime = totalTime / len(answers)
	}

	report.Questions = make([]QuestionStats, 0, len(questions))
	for _, q := range questions {
		report.TotalPoints += q.Points
		stats := QuestionStats{
			QuestionID: q.ID,
			Order:      q.Order,
			Text:       truncate(q.Text, 100),
			Type:       q.Type,
			Points:     q.Points,
		}
		if t, ok := perQuestion[q.ID]; ok && t.attempts > 0 {
			stats.Attempts = t.attempts
			stats.Correct = t.correct
			stats.CorrectPct = t.correct * 100 / t.attempts
			stats.AvgTime = t.time / t.attempts
		}
		stats.Difficulty = Difficulty(stats.CorrectPct)
		report.Questions = append(report.Questions, stats)
	}

	top := Rank(s.engine.ScoreAnswers(qz, answers), len(questions))
	if len(top) > analyticsTopN {
		top = top[:analyticsTopN]
	}
	report.Top = top
	return report, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
