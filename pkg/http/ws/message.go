package ws

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeJoinWaitingRoom  = "join_waiting_room"
	TypeLeaveWaitingRoom = "leave_waiting_room"
	TypeJoinQuiz         = "join_quiz"
	TypeSubmitAnswer     = "submit_answer"
	TypeAdminStart       = "admin_start_quiz"
	TypeAdminNext        = "admin_next_question"
	TypeAdminPrevious    = "admin_previous_question"
	TypeAdminPause       = "admin_pause_quiz"
	TypeAdminResume      = "admin_resume_quiz"
	TypeAdminStop        = "admin_stop_quiz"
	TypePing             = "ping"

	// Server -> Client
	TypeBeginQuiz          = "begin_quiz"
	TypeJoinQuizRoom       = "join_quiz_room"
	TypeLoadNextQuestion   = "load_next_question"
	TypeQuizFinished       = "quiz_finished"
	TypeQuizStopped        = "quiz_stopped"
	TypeQuizPaused         = "quiz_paused"
	TypeQuizResumed        = "quiz_resumed"
	TypeQuizReset          = "quiz_reset"
	TypeUpdateParticipants = "update_participants"
	TypeLeaderboardUpdate  = "leaderboard_update"
	TypeAnswerAck          = "answer_ack"
	TypeControlAck         = "control_ack"
	TypeError              = "error"
	TypePong               = "pong"
)

// WaitingRoom names the room participants sit in before the quiz starts.
func WaitingRoom(quizID int64) string {
	return fmt.Sprintf("waiting_room_%d", quizID)
}

// QuizRoom names the room receiving live question events.
func QuizRoom(quizID int64) string {
	return fmt.Sprintf("quiz_%d", quizID)
}

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Client Messages (incoming)

// QuizRefPayload is used by every message that only names a quiz.
type QuizRefPayload struct {
	QuizID int64 `json:"quiz_id"`
}

type SubmitAnswerPayload struct {
	QuizID        int64    `json:"quiz_id"`
	QuestionID    int64    `json:"question_id"`
	QuestionIndex int      `json:"qindex"`
	Answer        string   `json:"answer"`
	Selections    []string `json:"selections,omitempty"`
	TimeTaken     int      `json:"time_taken"`
}

// Server Messages (outgoing)

type BeginQuizPayload struct {
	QuizID          int64  `json:"quiz_id"`
	Message         string `json:"message"`
	HasTimer        bool   `json:"has_timer"`
	OverallTimer    *int   `json:"overall_timer"` // seconds, null when disabled
	ShowLeaderboard bool   `json:"show_leaderboard"`
}

type JoinQuizRoomPayload struct {
	QuizID int64  `json:"quiz_id"`
	Room   string `json:"room"`
}

type NextQuestionPayload struct {
	QuizID int64 `json:"quiz_id"`
	QIndex int   `json:"qindex"`
}

type QuizFinishedPayload struct {
	QuizID  int64  `json:"quiz_id"`
	Message string `json:"message"`
}

type QuizStoppedPayload struct {
	QuizID  int64  `json:"quiz_id"`
	Message string `json:"message"`
}

type QuizStatePayload struct {
	QuizID           int64 `json:"quiz_id"`
	QIndex           int   `json:"qindex"`
	RemainingSeconds *int  `json:"remaining_seconds,omitempty"`
}

type ParticipantsPayload struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type AnswerAckPayload struct {
	QuizID          int64   `json:"quiz_id"`
	QuestionID      int64   `json:"question_id"`
	IsCorrect       bool    `json:"is_correct"`
	CorrectAnswer   string  `json:"correct_answer"`
	Points          float64 `json:"points"`
	Bonus           float64 `json:"bonus"`
	StudentComplete bool    `json:"student_complete"`
	NextQuestion    *int    `json:"next_question"`
	ShowLeaderboard bool    `json:"show_leaderboard"`
}

type ControlAckPayload struct {
	QuizID  int64  `json:"quiz_id"`
	Action  string `json:"action"`
	Changed bool   `json:"changed"`
	State   string `json:"state"`
	QIndex  int    `json:"qindex"`
}

type LeaderboardUpdatePayload struct {
	QuizID     int64                      `json:"quiz_id"`
	Top        []LeaderboardEntry         `json:"top"`
	QuestionID int64                      `json:"question_id,omitempty"`
	Question   []QuestionLeaderboardEntry `json:"question,omitempty"`
	IssuedAt   time.Time                  `json:"issued_at"`
}

type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	ParticipantID  string  `json:"participant_id"`
	Name           string  `json:"name"`
	Points         float64 `json:"points"`
	Correct        int     `json:"correct"`
	Answered       int     `json:"answered"`
	TotalQuestions int     `json:"total_questions"`
	Time           int     `json:"time"`
	AvgTime        float64 `json:"avg_time"`
}

type QuestionLeaderboardEntry struct {
	Rank          int       `json:"rank"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	TimeTaken     int       `json:"time_taken"`
	Points        float64   `json:"points"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
