package session

import (
	"sort"
	"sync"
	"time"

	"github.com/gokatarajesh/livequiz/internal/metrics"
)

// State is the transient live state of one running quiz.
type State struct {
	QuizID           int64      `json:"quiz_id"`
	QuestionIndex    int        `json:"question_index"`
	StartedAt        time.Time  `json:"started_at"`
	AdvancedAt       time.Time  `json:"advanced_at"`
	OverallStartedAt *time.Time `json:"overall_started_at,omitempty"`
	OverallDuration  int        `json:"overall_duration,omitempty"`
	PausedSeconds    int        `json:"paused_seconds"`
	PausedAt         *time.Time `json:"paused_at,omitempty"`
}

// HasOverallTimer reports whether a quiz-wide timer runs for this session.
func (s State) HasOverallTimer() bool {
	return s.OverallStartedAt != nil && s.OverallDuration > 0
}

// Remaining returns the overall timer's remaining seconds at now.
// An ongoing pause counts as paused time.
func (s State) Remaining(now time.Time) (int, bool) {
	if !s.HasOverallTimer() {
		return 0, false
	}
	paused := s.PausedSeconds
	if s.PausedAt != nil && now.After(*s.PausedAt) {
		paused += int(now.Sub(*s.PausedAt).Seconds())
	}
	return RemainingSeconds(now, *s.OverallStartedAt, paused, s.OverallDuration), true
}

// Registry holds live session state per quiz. Only the Controller writes to it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]State
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]State)}
}

// Get returns a copy of the state for quizID.
func (r *Registry) Get(quizID int64) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[quizID]
	return s, ok
}

// List returns every live session ordered by quiz id.
func (r *Registry) List() []State {
	r.mu.RLock()
	out := make([]State, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].QuizID < out[j].QuizID })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) put(s State) {
	r.mu.Lock()
	r.sessions[s.QuizID] = s
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}

func (r *Registry) remove(quizID int64) bool {
	r.mu.Lock()
	_, existed := r.sessions[quizID]
	delete(r.sessions, quizID)
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	return existed
}
