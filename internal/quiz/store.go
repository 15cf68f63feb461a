package quiz

import (
	"context"
	"time"
)

// QuizStore persists quiz definitions and lifecycle flags.
// Lifecycle writes are conditional: a guard that no longer holds yields ErrStateConflict.
type QuizStore interface {
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	GetQuiz(ctx context.Context, id int64) (Quiz, error)
	GetQuizByJoinCode(ctx context.Context, code string) (Quiz, error)
	ListActiveQuizzes(ctx context.Context) ([]Quiz, error)
	ListQuestions(ctx context.Context, quizID int64) ([]Question, error)
	AppendQuestions(ctx context.Context, quizID int64, questions []Question) ([]Question, error)
	RenameQuiz(ctx context.Context, id int64, title string) error
	DeleteQuiz(ctx context.Context, id int64) error

	LockQuiz(ctx context.Context, id int64) (Quiz, error)
	PublishQuiz(ctx context.Context, id int64, joinCode string, now time.Time) (Quiz, error)
	// ActivateQuiz deletes every answer of the quiz, marks it active and bumps session_count
	// in one transaction.
	ActivateQuiz(ctx context.Context, id int64) (Quiz, error)
	PauseQuiz(ctx context.Context, id int64, now time.Time) (Quiz, error)
	// ResumeQuiz folds now-paused_at (whole seconds) into paused_seconds.
	ResumeQuiz(ctx context.Context, id int64, now time.Time) (Quiz, error)
	StopQuiz(ctx context.Context, id int64) (Quiz, error)
	// ResetQuiz deletes every answer, clears active/pause flags and bumps session_count
	// in one transaction.
	ResetQuiz(ctx context.Context, id int64) (Quiz, error)
}

// AnswerStore persists submitted answers. (quiz, question, participant) is unique.
type AnswerStore interface {
	// ReplaceAnswer deletes any prior answer for the same key and inserts a in one transaction.
	// The quiz must be active, unpaused and still in session; otherwise nothing is written and
	// ErrNotActive or ErrQuizPaused is returned. Session changes are ordered against the insert.
	ReplaceAnswer(ctx context.Context, session int, a Answer) (Answer, error)
	ListAnswers(ctx context.Context, quizID int64) ([]Answer, error)
	ListQuestionAnswers(ctx context.Context, quizID, questionID int64) ([]Answer, error)
	ListParticipantAnswers(ctx context.Context, quizID int64, participantID string) ([]Answer, error)
}

// ResultStore persists final per-participant results.
type ResultStore interface {
	// CreateResult inserts r unless a result exists for (quiz, participant); created reports which.
	CreateResult(ctx context.Context, r Result) (stored Result, created bool, err error)
	ListResults(ctx context.Context, quizID int64) ([]Result, error)
}

// SnapshotStore persists leaderboard snapshots.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, s Snapshot) (Snapshot, error)
	LatestSnapshot(ctx context.Context, quizID int64) (Snapshot, error)
}

// Store is the full persistence contract.
type Store interface {
	QuizStore
	AnswerStore
	ResultStore
	SnapshotStore
	Ping(ctx context.Context) error
}
