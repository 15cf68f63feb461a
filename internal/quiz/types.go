package quiz

import (
	"strings"
	"time"
)

// QuestionType identifies how a question is answered and graded.
type QuestionType string

const (
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiSelect  QuestionType = "multi_select"
	TypeShortAnswer  QuestionType = "short_answer"
	TypeParagraph    QuestionType = "paragraph"
)

// ParseQuestionType normalizes a type name, accepting the legacy form names.
// Unknown names are returned unchanged so old rows keep grading on the legacy path.
func ParseQuestionType(raw string) QuestionType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "single_choice", "single-choice", "multiple-choice", "multiple_choice":
		return TypeSingleChoice
	case "multi_select", "multi-select", "checkbox":
		return TypeMultiSelect
	case "short_answer", "short-answer", "text":
		return TypeShortAnswer
	case "paragraph":
		return TypeParagraph
	default:
		return QuestionType(strings.TrimSpace(raw))
	}
}

// IsChoice reports whether answers reference option indices.
func (t QuestionType) IsChoice() bool {
	return t == TypeSingleChoice || t == TypeMultiSelect
}

// IsFreeText reports whether answers are typed text.
func (t QuestionType) IsFreeText() bool {
	return t == TypeShortAnswer || t == TypeParagraph
}

// Known reports whether the type has a dedicated grading rule.
func (t QuestionType) Known() bool {
	return t.IsChoice() || t.IsFreeText()
}

// Lifecycle is the derived state of a quiz.
type Lifecycle string

const (
	StateDraft     Lifecycle = "draft"
	StateLocked    Lifecycle = "locked"
	StatePublished Lifecycle = "published"
	StateActive    Lifecycle = "active"
	StatePaused    Lifecycle = "paused"
	StateStopped   Lifecycle = "stopped"
)

// Quiz is the persisted quiz definition plus its lifecycle flags.
type Quiz struct {
	ID                  int64      `json:"id"`
	HostID              string     `json:"host_id"`
	Title               string     `json:"title"`
	HasTimer            bool       `json:"has_timer"`
	OverallTimerMinutes int        `json:"overall_timer_minutes,omitempty"`
	ShowLeaderboard     bool       `json:"show_leaderboard"`
	IsLocked            bool       `json:"is_locked"`
	IsPublished         bool       `json:"is_published"`
	IsActive            bool       `json:"is_active"`
	IsPaused            bool       `json:"is_paused"`
	JoinCode            string     `json:"join_code,omitempty"`
	PublishCount        int        `json:"publish_count"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	PausedAt            *time.Time `json:"paused_at,omitempty"`
	PausedSeconds       int        `json:"paused_seconds"`
	SessionCount        int        `json:"session_count"` // bumped by every start and reset
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Questions []Question `json:"questions,omitempty"`
}

// State derives the lifecycle state from the persisted flags.
func (q Quiz) State() Lifecycle {
	switch {
	case !q.IsLocked:
		return StateDraft
	case q.IsActive && q.IsPaused:
		return StatePaused
	case q.IsActive:
		return StateActive
	case q.IsPublished:
		return StatePublished
	case q.PublishCount > 0:
		return StateStopped
	default:
		return StateLocked
	}
}

// OverallTimerSeconds returns the quiz-wide budget, zero when disabled.
func (q Quiz) OverallTimerSeconds() int {
	if q.OverallTimerMinutes <= 0 {
		return 0
	}
	return q.OverallTimerMinutes * 60
}

// LeaderboardVisible reports whether the per-question leaderboard may be shown.
// The question flag narrows the quiz flag, it never widens it.
func (q Quiz) LeaderboardVisible(question Question) bool {
	return q.ShowLeaderboard && question.ShowLeaderboard
}

// Option is a single choice displayed to participants.
type Option struct {
	Text     string `json:"text" yaml:"text"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// Question belongs to exactly one quiz. Order is 0-based and contiguous.
type Question struct {
	ID              int64        `json:"id"`
	QuizID          int64        `json:"quiz_id"`
	Order           int          `json:"order"`
	Type            QuestionType `json:"question_type"`
	Text            string       `json:"text"`
	Options         []Option     `json:"options,omitempty"`
	CorrectAnswers  []string     `json:"correct_answers"`
	LegacyAnswer    string       `json:"legacy_answer,omitempty"`
	Points          float64      `json:"points"`
	TimeLimit       int          `json:"time_limit,omitempty"`
	ShowLeaderboard bool         `json:"show_leaderboard"`
}

// Answer is one participant's submission for one question.
// Points hold the base and speed points only; rank bonuses are derived on read.
type Answer struct {
	ID              int64     `json:"id"`
	QuizID          int64     `json:"quiz_id"`
	QuestionID      int64     `json:"question_id"`
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	Response        string    `json:"response"`
	IsCorrect       bool      `json:"is_correct"`
	TimeTaken       int       `json:"time_taken"`
	Points          float64   `json:"points"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Result is created once per participant when they answer the last question.
type Result struct {
	ID              int64     `json:"id"`
	QuizID          int64     `json:"quiz_id"`
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	Score           int       `json:"score"`
	Total           int       `json:"total"`
	TimeTaken       int       `json:"time_taken"`
	TotalPoints     float64   `json:"total_points"`
	CreatedAt       time.Time `json:"created_at"`
}

// Snapshot is a persisted copy of a quiz leaderboard.
type Snapshot struct {
	ID          int64     `json:"id"`
	QuizID      int64     `json:"quiz_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []byte    `json:"entries"`
	SourceHash  string    `json:"source_hash"`
}
