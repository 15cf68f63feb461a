package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"
	ErrCodeHostRequired           = "host_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeConflict      = "conflict"

	// Quiz lifecycle errors
	ErrCodeQuizNotFound     = "quiz_not_found"
	ErrCodeQuestionNotFound = "question_not_found"
	ErrCodeInvalidJoinCode  = "invalid_join_code"
	ErrCodeQuizLocked       = "quiz_locked"
	ErrCodeNotLocked        = "quiz_not_locked"
	ErrCodeNoQuestions      = "no_questions"
	ErrCodeNotPublished     = "quiz_not_published"
	ErrCodeAlreadyActive    = "quiz_already_active"
	ErrCodeNotActive        = "quiz_not_active"
	ErrCodeQuizPaused       = "quiz_paused"
	ErrCodeJoinCodeTaken    = "join_code_taken"
	ErrCodeStateConflict    = "state_conflict"
	ErrCodeSubmitFailed     = "submit_failed"
	ErrCodeGuestCreation    = "guest_creation_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"
	ErrCodeRateLimited        = "rate_limited"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeLockTimeout        = "lock_timeout"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeLeaderboardHidden      = "leaderboard_hidden"
)
