package quiz

import "errors"

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNotLocked        = errors.New("quiz must be locked before publishing")
	ErrQuizLocked       = errors.New("quiz is locked for editing")
	ErrNoQuestions      = errors.New("quiz has no questions")
	ErrNotPublished     = errors.New("quiz is not published")
	ErrAlreadyActive    = errors.New("quiz is already active")
	ErrNotActive        = errors.New("quiz is not active")
	ErrQuizPaused       = errors.New("quiz is paused")
	ErrForbidden        = errors.New("quiz belongs to another host")
	ErrJoinCodeTaken    = errors.New("join code already in use")
	ErrStateConflict    = errors.New("quiz state changed concurrently")
	ErrSnapshotNotFound = errors.New("leaderboard snapshot not found")
	ErrBusy             = errors.New("quiz is busy, try again")
)

// ValidationError describes a rejected field in a request or submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsPrecondition reports whether err rejects an action in the wrong lifecycle state.
// Such errors leave state untouched and are surfaced to the caller as-is.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrQuizNotFound, ErrQuestionNotFound, ErrNotLocked, ErrQuizLocked, ErrNoQuestions,
		ErrNotPublished, ErrAlreadyActive, ErrNotActive, ErrQuizPaused, ErrForbidden,
		ErrStateConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CheckAnswerable reports why an answer graded in session cannot be stored, or nil.
func CheckAnswerable(active, paused bool, current, session int) error {
	switch {
	case !active || current != session:
		return ErrNotActive
	case paused:
		return ErrQuizPaused
	}
	return nil
}
