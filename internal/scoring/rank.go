package scoring

import (
	"sort"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// ScoredAnswer is a stored answer with its derived rank bonus.
type ScoredAnswer struct {
	quiz.Answer
	Bonus float64
}

// Total returns stored points plus the rank bonus.
func (s ScoredAnswer) Total() float64 {
	return s.Points + s.Bonus
}

// RankBonuses returns the bonus per participant for the answers of one question.
// Correct answers are ordered by time taken, then submission time, then participant id,
// and the configured bonuses go to the fastest ones. The result depends only on the
// stored answers, so calling it again never awards twice.
func (e *Engine) RankBonuses(answers []quiz.Answer) map[string]float64 {
	correct := make([]quiz.Answer, 0, len(answers))
	for _, a := range answers {
		if a.IsCorrect {
			correct = append(correct, a)
		}
	}
	SortByPace(correct)

	bonuses := make(map[string]float64, len(e.config.RankBonuses))
	for i, a := range correct {
		if i >= len(e.config.RankBonuses) {
			break
		}
		bonuses[a.ParticipantID] = e.config.RankBonuses[i]
	}
	return bonuses
}

// ApplyRankBonuses attaches bonuses to answers spanning any number of questions.
// The returned slice keeps the input order.
func (e *Engine) ApplyRankBonuses(answers []quiz.Answer) []ScoredAnswer {
	byQuestion := make(map[int64][]quiz.Answer)
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}
	bonusByQuestion := make(map[int64]map[string]float64, len(byQuestion))
	for questionID, group := range byQuestion {
		bonusByQuestion[questionID] = e.RankBonuses(group)
	}

	scored := make([]ScoredAnswer, len(answers))
	for i, a := range answers {
		scored[i] = ScoredAnswer{Answer: a, Bonus: bonusByQuestion[a.QuestionID][a.ParticipantID]}
	}
	return scored
}

// SortByPace orders answers by time taken, submission time and participant id.
func SortByPace(answers []quiz.Answer) {
	sort.SliceStable(answers, func(i, j int) bool {
		a, b := answers[i], answers[j]
		if a.TimeTaken != b.TimeTaken {
			return a.TimeTaken < b.TimeTaken
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ParticipantID < b.ParticipantID
	})
}

// BonusesApply reports whether rank bonuses count for the quiz.
// Bonuses reward pace, so self-paced quizzes without per-question timing get none.
func BonusesApply(qz quiz.Quiz) bool {
	return qz.HasTimer
}

// ScoreAnswers attaches rank bonuses when the quiz awards them.
func (e *Engine) ScoreAnswers(qz quiz.Quiz, answers []quiz.Answer) []ScoredAnswer {
	if BonusesApply(qz) {
		return e.ApplyRankBonuses(answers)
	}
	scored := make([]ScoredAnswer, len(answers))
	for i, a := range answers {
		scored[i] = ScoredAnswer{Answer: a}
	}
	return scored
}
