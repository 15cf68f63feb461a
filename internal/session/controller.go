package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/metrics"
	"github.com/gokatarajesh/livequiz/internal/quiz"
	"github.com/gokatarajesh/livequiz/pkg/http/ws"
)

const maxJoinCodeAttempts = 5

// Broadcaster delivers an event to every connection in a room.
type Broadcaster interface {
	BroadcastToRoom(room string, msg ws.Message) error
}

// ControllerOptions configures the session controller.
type ControllerOptions struct {
	JoinCodeLength int
	LockTimeout    time.Duration
	Now            func() time.Time
	// SharedState makes the mirror authoritative over the local registry. Set it when several
	// instances share a distributed lock and mirror.
	SharedState bool
}

// Outcome is the result of a controller action.
type Outcome struct {
	Quiz     quiz.Quiz `json:"quiz"`
	State    *State    `json:"state,omitempty"`
	Changed  bool      `json:"changed"`
	Finished bool      `json:"finished,omitempty"`
}

// Status is the public view of a quiz's live state.
type Status struct {
	QuizID           int64          `json:"quiz_id"`
	Title            string         `json:"title"`
	State            quiz.Lifecycle `json:"state"`
	IsActive         bool           `json:"is_active"`
	IsPaused         bool           `json:"is_paused"`
	CurrentIndex     int            `json:"current_question_index"`
	TotalQuestions   int            `json:"total_questions"`
	HasTimer         bool           `json:"has_timer"`
	ShowLeaderboard  bool           `json:"show_leaderboard"`
	OverallTimer     *int           `json:"overall_timer,omitempty"`
	RemainingSeconds *int           `json:"remaining_seconds,omitempty"`
}

// Controller owns every lifecycle transition of a quiz and the live state registry.
// Mutations are serialized per quiz; each one persists first and broadcasts second.
type Controller struct {
	store       quiz.QuizStore
	questions   quiz.QuestionLoader
	registry    *Registry
	locker      Locker
	mirror      Mirror
	shared      bool
	broadcaster Broadcaster
	joinCodeLen int
	lockTimeout time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewController wires the controller. mirror may be nil.
func NewController(
	store quiz.QuizStore,
	questions quiz.QuestionLoader,
	registry *Registry,
	locker Locker,
	mirror Mirror,
	broadcaster Broadcaster,
	opts ControllerOptions,
	logger zerolog.Logger,
) *Controller {
	if opts.JoinCodeLength <= 0 {
		opts.JoinCodeLength = 6
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if registry == nil {
		registry = NewRegistry()
	}

	return &Controller{
		store:       store,
		questions:   questions,
		registry:    registry,
		locker:      locker,
		mirror:      mirror,
		shared:      opts.SharedState && mirror != nil,
		broadcaster: broadcaster,
		joinCodeLen: opts.JoinCodeLength,
		lockTimeout: opts.LockTimeout,
		now:         opts.Now,
		logger:      logger.With().Str("component", "session_controller").Logger(),
	}
}

// Registry exposes the live state registry for readers.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Publish assigns a join code and opens the waiting room. Re-publishing keeps the code.
func (c *Controller) Publish(ctx context.Context, hostID string, quizID int64) (Outcome, error) {
	return c.withQuiz(ctx, "publish", hostID, quizID, func(ctx context.Context, qz quiz.Quiz) (Outcome, error) {
		if !qz.IsLocked {
			return Outcome{}, quiz.ErrNotLocked
		}
		if qz.IsActive {
			return Outcome{}, quiz.ErrAlreadyActive
		}
		questions, err := c.questions.ListQuestions(ctx, quizID)
		if err != nil {
			return Outcome{}, fmt.Errorf("list questions: %w", err)
		}
		if len(questions) == 0 {
			return Outcome{}, quiz.ErrNoQuestions
		}

		code := qz.JoinCode
		for attempt := 0; attempt < maxJoinCodeAttempts; attempt++ {
			if code == "" {
				code, err = quiz.NewJoinCode(c.joinCodeLen)
				if err != nil {
					return Outcome{}, err
				}
			}
			updated, err := c.store.PublishQuiz(ctx, quizID, code, c.now())
			if errors.Is(err, quiz.ErrJoinCodeTaken) {
				c.logger.Debug().Int64("quiz_id", quizID).Int("attempt", attempt+1).Msg("join code collision")
				code = ""
				continue
			}
			if err != nil {
				return Outcome{}, fmt.Errorf("publish quiz: %w", err)
			}

			c.logger.Info().
				Int64("quiz_id", quizID).
				Str("join_code", updated.JoinCode).
				Int("publish_count", updated.PublishCount).
				Msg("quiz published")
			return Outcome{Quiz: updated, Changed: true}, nil
		}
		return Outcome{}, quiz.ErrJoinCodeTaken
	})
}

// Start activates a published quiz at question 0 and moves the waiting room into the quiz room.
// Prior answers and pause accounting are cleared.
func (c *Controller) Start(ctx context.Context, hostID string, quizID int64) (Outcome, error) {
	return c.withQuiz(ctx, "start", hostID, quizID, func(ctx context.Context, qz quiz.Quiz) (Outcome, error) {
		if !qz.IsPublished {
			return Outcome{}, quiz.ErrNotPublished
		}
		if qz.IsActive {
			return Outcome{}, quiz.ErrAlreadyActive
		}

		updated, err := c.store.ActivateQuiz(ctx, quizID)
		if err != nil {
			return Outcome{}, fmt.Errorf("activate quiz: %w", err)
		}

		st := c.freshState(updated)
		c.registry.put(st)
		c.saveMirror(ctx, st)

		var overall *int
		if secs := updated.OverallTimerSeconds(); secs > 0 {
			overall = &secs
		}
		c.broadcast(ws.WaitingRoom(quizID), ws.TypeBeginQuiz, ws.BeginQuizPayload{
			QuizID:          quizID,
			Message:         "Quiz is starting",
			HasTimer:        updated.HasTimer,
			OverallTimer:    overall,
			ShowLeaderboard: updated.ShowLeaderboard,
		})
		c.broadcast(ws.WaitingRoom(quizID), ws.TypeJoinQuizRoom, ws.JoinQuizRoomPayload{
			QuizID: quizID,
			Room:   ws.QuizRoom(quizID),
		})

		c.logger.Info().Int64("quiz_id", quizID).Msg("quiz started")
		return Outcome{Quiz: updated, State: &st, Changed: true}, nil
	})
}

// Pause freezes an active quiz. Pausing twice is a no-op.
func (c *Controller) Pause(ctx context.Context, hostID string, quizID int64) (Outcome, error) {
	return c.withQuiz(ctx, "pause", hostID, quizID, func(ctx context.Context, qz quiz.Quiz) (Outcome, error) {
		if !qz.IsActive {
			return Outcome{}, quiz.ErrNotActive
		}
		st := c.ensureState(ctx, qz)
		if qz.IsPaused {
			return Outcome{Quiz: qz, State: &st}, nil
		}

		now := c.now()
		updated, err := c.store.PauseQuiz(ctx, quizID, now)
		if err != nil {
			return Outcome{}, fmt.Errorf("pause quiz: %w", err)
		}

		pausedAt := now
		st.PausedAt = &pausedAt
		c.registry.put(st)
		c.saveMirror(ctx, st)

		c.broadcast(ws.QuizRoom(quizID), ws.TypeQuizPaused, c.statePayload(st, now))
		c.logger.Info().Int64("quiz_id", quizID).Int("qindex", st.QuestionIndex).Msg("quiz paused")
		return Outcome{Quiz: updated, State: &st, Changed: true}, nil
	})
}

// Resume unfreezes a paused quiz and folds the pause into the paused total.
// Resuming a running quiz is a no-op.
func (c *Controller) Resume(ctx context.Context, hostID string, quizID int64) (Outcome, error) {
	return c.withQuiz(ctx, "resume", hostID, quizID, func(ctx context.Context, qz quiz.Quiz) (Outcome, error) {
		if !qz.IsActive {
			return Outcome{}, quiz.ErrNotActive
		}
		st := c.ensureState(ctx, qz)
		if !qz.IsPaused {
			return Outcome{Quiz: qz, State: &st}, nil
		}

		now := c.now()
		updated, err := c.store.ResumeQuiz(ctx, quizID, now)
		if err != nil {
			return Outcome{}, fmt.Errorf("resume quiz: %w", err)
		}

		st.PausedAt = nil
		st.PausedSeconds = updated.PausedSeconds
		c.registry.put(st)
		c.saveMirror(ctx, st)

		c.broadcast(ws.QuizRoom(quizID), ws.TypeQuizResumed, c.statePayload(st, now))
		c.logger.Info().
			Int64("quiz_id", quizID).
			Int("paused_seconds", updated.PausedSeconds).
			Msg("quiz resumed")
		return Outcome{Quiz: updated, State: &st, Changed: true}, nil
	})
}

// Advance moves the current question by direction (+1 or -1).
// Moving past the last question finishes the quiz for participants without changing the index.
func (c *Controller) Advance(ctx context.Context, hostID string, quizID int64, direction int) (Outcome, error) {
	action := "next"
	if direction < 0 {
		action = "previous"
	}
	if direction != 1 && direction != -1 {
		return Outcome{}, quiz.Invalid("direction", "direction must be +1 or -1")
	}

	return c.withQuiz(ctx, action, hostID, quizID, func(ctx context.Context, qz quiz.Quiz) (Outcome, error) {
		if !qz.IsActive {
			return Outcome{}, quiz.ErrNotActive
		}
		if qz.IsPaused {
			return Outcome{}, quiz.ErrQuizPaused
		}
		questions, err := c.questions.ListQuestions(ctx, quizID)
		if err != nil {
			return Outcome{}, fmt.Errorf("list questions: %w", err)
		}
		if len(questions) == 0 {
			return Outcome{}, quiz.ErrNoQuestions
		}

		st := c.ensureState(ctx, qz)
		last := len(questions) - 1

		if direction > 0 && st.QuestionIndex >= last {
			c.broadcast(ws.QuizRoom(quizID), ws.TypeQuizFinished, ws.QuizFinishedPayload{
				QuizID:  quizID,
				Message: "Quiz finished",
			})
			c.logger.Info().Int64("quiz_id", quizID).Msg("quiz finished")
			return Outcome{Quiz: qz, State: &st, Finished: true}, nil
		}

		next := st.QuestionIndex + direction
		if next < 0 {
			next = 0
		}
		changed := next != st.QuestionIndex
		if changed {
			st.QuestionIndex = next
			st.AdvancedAt = c.now()
			c.registry.put(st)
			c.saveMirror(ctx, st)
		}

		c.broadcast(ws.QuizRoom(quizID), ws.TypeLoadNextQuestion, ws.NextQuestionPayload{
			QuizID: quizID,
			QIndex: st.QuestionIndex,
		})
		c.logger.Info().Int64("quiz_id", quizID).Int("qindex", st.QuestionIndex).Msg("question changed")
		return Outcome{Quiz: qz, State: &st, Changed: changed}, nil
	})
}

// Stop ends the quiz from any state and discards its live state.
func (c *Controller) Stop(ctx context.Context, hostID string, quizID int64) (Outcome, error) {
	return c.withQuiz(ctx, "stop", hostID, quizID, func(ctx context.Context, qz quiz.Quiz) (Outcome, error) {
		wasLive := qz.IsActive || qz.IsPublished || qz.IsPaused

		updated, err := c.store.StopQuiz(ctx, quizID)
		if err != nil {
			return Outcome{}, fmt.Errorf("stop quiz: %w", err)
		}
		hadState := c.registry.remove(quizID)
		c.deleteMirror(ctx, quizID)

		payload := ws.QuizStoppedPayload{QuizID: quizID, Message: "Quiz has been stopped"}
		c.broadcast(ws.QuizRoom(quizID), ws.TypeQuizStopped, payload)
		c.broadcast(ws.WaitingRoom(quizID), ws.TypeQuizStopped, payload)

		c.logger.Info().Int64("quiz_id", quizID).Msg("quiz stopped")
		return Outcome{Quiz: updated, Changed: wasLive || hadState}, nil
	})
}

// Reset clears answers and live state so the quiz can be started again.
// Results and the published flag are kept.
func (c *Controller) Reset(ctx context.Context, hostID string, quizID int64) (Outcome, error) {
	return c.withQuiz(ctx, "reset", hostID, quizID, func(ctx context.Context, qz quiz.Quiz) (Outcome, error) {
		updated, err := c.store.ResetQuiz(ctx, quizID)
		if err != nil {
			return Outcome{}, fmt.Errorf("reset quiz: %w", err)
		}
		c.registry.remove(quizID)
		c.deleteMirror(ctx, quizID)

		c.broadcast(ws.QuizRoom(quizID), ws.TypeQuizReset, ws.QuizRefPayload{QuizID: quizID})
		c.logger.Info().Int64("quiz_id", quizID).Msg("quiz reset")
		return Outcome{Quiz: updated, Changed: true}, nil
	})
}

// Status reports the live view of a quiz without taking the quiz lock.
func (c *Controller) Status(ctx context.Context, quizID int64) (Status, error) {
	qz, err := c.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Status{}, err
	}
	questions, err := c.questions.ListQuestions(ctx, quizID)
	if err != nil {
		return Status{}, fmt.Errorf("list questions: %w", err)
	}

	status := Status{
		QuizID:          qz.ID,
		Title:           qz.Title,
		State:           qz.State(),
		IsActive:        qz.IsActive,
		IsPaused:        qz.IsPaused,
		TotalQuestions:  len(questions),
		HasTimer:        qz.HasTimer,
		ShowLeaderboard: qz.ShowLeaderboard,
	}
	if secs := qz.OverallTimerSeconds(); secs > 0 {
		status.OverallTimer = &secs
	}
	if st, ok := c.Current(ctx, quizID); ok && qz.IsActive {
		status.CurrentIndex = st.QuestionIndex
		if remaining, ok := st.Remaining(c.now()); ok {
			status.RemainingSeconds = &remaining
		}
	}
	return status, nil
}

// Current returns the live state of a running quiz. With shared state the mirror is
// consulted first.
func (c *Controller) Current(ctx context.Context, quizID int64) (State, bool) {
	if c.shared {
		st, err := c.mirror.Load(ctx, quizID)
		if err != nil {
			c.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("failed to load mirrored state")
		}
		if st != nil {
			return *st, true
		}
	}
	return c.registry.Get(quizID)
}

// Recover reloads live state for every active quiz from the mirror.
// Active quizzes without a mirrored state are left for ensureState to rebuild on first use.
func (c *Controller) Recover(ctx context.Context) (int, error) {
	if c.mirror == nil {
		return 0, nil
	}
	active, err := c.store.ListActiveQuizzes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active quizzes: %w", err)
	}

	restored := 0
	for _, qz := range active {
		st, err := c.mirror.Load(ctx, qz.ID)
		if err != nil {
			c.logger.Warn().Err(err).Int64("quiz_id", qz.ID).Msg("skip unreadable session state")
			continue
		}
		if st == nil {
			continue
		}
		c.registry.put(*st)
		restored++
	}

	c.logger.Info().Int("active", len(active)).Int("restored", restored).Msg("sessions recovered")
	return restored, nil
}

type quizAction func(ctx context.Context, qz quiz.Quiz) (Outcome, error)

func (c *Controller) withQuiz(ctx context.Context, action, hostID string, quizID int64, fn quizAction) (Outcome, error) {
	lockCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	unlock, err := c.locker.Lock(lockCtx, quizID)
	cancel()
	if err != nil {
		c.record(action, quizID, Outcome{}, err)
		return Outcome{}, fmt.Errorf("%s quiz: %w", action, err)
	}
	defer unlock()

	qz, err := c.store.GetQuiz(ctx, quizID)
	if err != nil {
		c.record(action, quizID, Outcome{}, err)
		return Outcome{}, err
	}
	if hostID != "" && qz.HostID != hostID {
		c.record(action, quizID, Outcome{}, quiz.ErrForbidden)
		return Outcome{}, quiz.ErrForbidden
	}

	out, err := fn(ctx, qz)
	c.record(action, quizID, out, err)
	return out, err
}

func (c *Controller) record(action string, quizID int64, out Outcome, err error) {
	outcome := metrics.OutcomeChanged
	switch {
	case err != nil && (quiz.IsPrecondition(err) || isValidation(err)):
		outcome = metrics.OutcomeRejected
		c.logger.Debug().Err(err).Int64("quiz_id", quizID).Str("action", action).Msg("action rejected")
	case err != nil:
		outcome = metrics.OutcomeFailed
		c.logger.Error().Err(err).Int64("quiz_id", quizID).Str("action", action).Msg("action failed")
	case !out.Changed:
		outcome = metrics.OutcomeNoop
	}
	metrics.SessionTransitions.WithLabelValues(action, outcome).Inc()
}

func isValidation(err error) bool {
	var verr *quiz.ValidationError
	return errors.As(err, &verr)
}

func (c *Controller) freshState(qz quiz.Quiz) State {
	now := c.now()
	st := State{
		QuizID:     qz.ID,
		StartedAt:  now,
		AdvancedAt: now,
	}
	if secs := qz.OverallTimerSeconds(); secs > 0 {
		started := now
		st.OverallStartedAt = &started
		st.OverallDuration = secs
	}
	return st
}

// ensureState returns the registry entry, falling back to the mirror and then to a
// state rebuilt at question 0. With shared state the mirror is read first. Callers hold
// the quiz lock.
func (c *Controller) ensureState(ctx context.Context, qz quiz.Quiz) State {
	if !c.shared {
		if st, ok := c.registry.Get(qz.ID); ok {
			return st
		}
	}
	if c.mirror != nil {
		st, err := c.mirror.Load(ctx, qz.ID)
		if err != nil {
			c.logger.Warn().Err(err).Int64("quiz_id", qz.ID).Msg("failed to load mirrored state")
		}
		if st != nil {
			c.registry.put(*st)
			return *st
		}
	}
	if c.shared {
		if st, ok := c.registry.Get(qz.ID); ok {
			return st
		}
	}

	c.logger.Warn().Int64("quiz_id", qz.ID).Msg("live state missing for active quiz, rebuilding at question 0")
	st := c.freshState(qz)
	st.PausedSeconds = qz.PausedSeconds
	if qz.IsPaused && qz.PausedAt != nil {
		pausedAt := *qz.PausedAt
		st.PausedAt = &pausedAt
	}
	c.registry.put(st)
	c.saveMirror(ctx, st)
	return st
}

func (c *Controller) statePayload(st State, now time.Time) ws.QuizStatePayload {
	payload := ws.QuizStatePayload{QuizID: st.QuizID, QIndex: st.QuestionIndex}
	if remaining, ok := st.Remaining(now); ok {
		payload.RemainingSeconds = &remaining
	}
	return payload
}

func (c *Controller) saveMirror(ctx context.Context, st State) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Save(ctx, st); err != nil {
		c.logger.Warn().Err(err).Int64("quiz_id", st.QuizID).Msg("failed to mirror session state")
	}
}

func (c *Controller) deleteMirror(ctx context.Context, quizID int64) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Delete(ctx, quizID); err != nil {
		c.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("failed to delete mirrored state")
	}
}

func (c *Controller) broadcast(room, msgType string, payload interface{}) {
	if c.broadcaster == nil {
		return
	}
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msgType).Msg("failed to encode event")
		return
	}
	if err := c.broadcaster.BroadcastToRoom(room, msg); err != nil {
		c.logger.Debug().Err(err).Str("room", room).Str("type", msgType).Msg("broadcast skipped")
	}
}
