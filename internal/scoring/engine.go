package scoring

import (
	"math"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// SpeedTier applies Multiplier when time_taken/time_limit is at most MaxRatio.
type SpeedTier struct {
	MaxRatio   float64
	Multiplier float64
}

// ScoringConfig holds configurable scoring constants (defaults match the live quiz rules).
type ScoringConfig struct {
	SpeedTiers     []SpeedTier // checked in order
	SlowMultiplier float64     // ratio above the last tier
	RankBonuses    []float64   // bonus per rank among correct answers, fastest first
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		SpeedTiers: []SpeedTier{
			{MaxRatio: 0.3, Multiplier: 1.5},
			{MaxRatio: 0.6, Multiplier: 1.2},
			{MaxRatio: 0.9, Multiplier: 1.0},
		},
		SlowMultiplier: 0.8,
		RankBonuses:    []float64{3, 2, 1},
	}
}

// Engine validates answers and computes points with configurable constants.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine. A zero config falls back to the defaults.
func NewEngine(config ScoringConfig) *Engine {
	if len(config.SpeedTiers) == 0 {
		config = DefaultScoringConfig()
	}
	return &Engine{config: config}
}

// CalculateScore computes points for one answer.
//   - incorrect: always 0
//   - multi-select with several correct options: base when every correct option is selected,
//     otherwise base * selected_correct/total_correct rounded to 1 decimal
//   - timed quiz with a positive time limit: base * speed multiplier, unrounded
//   - otherwise: base
func (e *Engine) CalculateScore(q quiz.Question, isCorrect bool, resp Response, timeTaken int, qz quiz.Quiz) float64 {
	if !isCorrect {
		return 0
	}

	base := q.Points
	if base < 0 {
		base = 0
	}

	if q.Type == quiz.TypeMultiSelect {
		markers := normalizedSet(q.CorrectAnswers)
		if len(markers) > 1 {
			hits := 0
			for sel := range normalizedSet(resp.Selections) {
				if _, ok := markers[sel]; ok {
					hits++
				}
			}
			if hits == len(markers) {
				return base
			}
			return round(base*float64(hits)/float64(len(markers)), 1)
		}
	}

	if qz.HasTimer && q.TimeLimit > 0 {
		ratio := float64(timeTaken) / float64(q.TimeLimit)
		return base * e.speedMultiplier(ratio)
	}

	return base
}

func (e *Engine) speedMultiplier(ratio float64) float64 {
	for _, tier := range e.config.SpeedTiers {
		if ratio <= tier.MaxRatio {
			return tier.Multiplier
		}
	}
	return e.config.SlowMultiplier
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
