package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// Store keeps quizzes, answers, results and snapshots in process memory.
// It enforces the same guards as the Postgres store and is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	clock func() time.Time

	nextQuizID     int64
	nextQuestionID int64
	nextAnswerID   int64
	nextResultID   int64
	nextSnapshotID int64

	quizzes   map[int64]quiz.Quiz
	questions map[int64][]quiz.Question
	answers   map[int64][]quiz.Answer
	results   map[int64][]quiz.Result
	snapshots map[int64][]quiz.Snapshot
}

// New creates an empty store.
func New() *Store {
	return &Store{
		clock:     time.Now,
		quizzes:   make(map[int64]quiz.Quiz),
		questions: make(map[int64][]quiz.Question),
		answers:   make(map[int64][]quiz.Answer),
		results:   make(map[int64][]quiz.Result),
		snapshots: make(map[int64][]quiz.Snapshot),
	}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQuizID++
	now := s.clock()
	q.ID = s.nextQuizID
	q.CreatedAt = now
	q.UpdatedAt = now
	q.Questions = nil
	s.quizzes[q.ID] = q
	return q, nil
}

func (s *Store) GetQuiz(_ context.Context, id int64) (quiz.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	return q, nil
}

func (s *Store) GetQuizByJoinCode(_ context.Context, code string) (quiz.Quiz, error) {
	code = quiz.NormalizeJoinCode(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, q := range s.quizzes {
		if q.JoinCode != "" && q.JoinCode == code {
			return q, nil
		}
	}
	return quiz.Quiz{}, quiz.ErrQuizNotFound
}

func (s *Store) ListActiveQuizzes(context.Context) ([]quiz.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []quiz.Quiz
	for _, q := range s.quizzes {
		if q.IsActive {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListQuestions(_ context.Context, quizID int64) ([]quiz.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.quizzes[quizID]; !ok {
		return nil, quiz.ErrQuizNotFound
	}
	return append([]quiz.Question(nil), s.questions[quizID]...), nil
}

func (s *Store) AppendQuestions(_ context.Context, quizID int64, questions []quiz.Question) ([]quiz.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[quizID]
	if !ok {
		return nil, quiz.ErrQuizNotFound
	}
	if q.IsLocked {
		return nil, quiz.ErrQuizLocked
	}

	existing := s.questions[quizID]
	added := make([]quiz.Question, 0, len(questions))
	for i, question := range questions {
		s.nextQuestionID++
		question.ID = s.nextQuestionID
		question.QuizID = quizID
		question.Order = len(existing) + i
		added = append(added, question)
	}
	s.questions[quizID] = append(existing, added...)
	q.UpdatedAt = s.clock()
	s.quizzes[quizID] = q
	return added, nil
}

func (s *Store) RenameQuiz(_ context.Context, id int64, title string) error {
	return s.update(id, func(q *quiz.Quiz) error {
		q.Title = title
		return nil
	})
}

func (s *Store) DeleteQuiz(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[id]; !ok {
		return quiz.ErrQuizNotFound
	}
	delete(s.quizzes, id)
	delete(s.questions, id)
	delete(s.answers, id)
	delete(s.results, id)
	delete(s.snapshots, id)
	return nil
}

func (s *Store) LockQuiz(_ context.Context, id int64) (quiz.Quiz, error) {
	return s.transition(id, func(q *quiz.Quiz) error {
		q.IsLocked = true
		return nil
	})
}

func (s *Store) PublishQuiz(_ context.Context, id int64, joinCode string, now time.Time) (quiz.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	if !q.IsLocked || q.IsActive {
		return quiz.Quiz{}, quiz.ErrStateConflict
	}
	if q.JoinCode == "" {
		for otherID, other := range s.quizzes {
			if otherID != id && other.JoinCode == joinCode {
				return quiz.Quiz{}, quiz.ErrJoinCodeTaken
			}
		}
		q.JoinCode = joinCode
	}

	publishedAt := now
	q.IsPublished = true
	q.PublishCount++
	q.PublishedAt = &publishedAt
	q.UpdatedAt = s.clock()
	s.quizzes[id] = q
	return q, nil
}

func (s *Store) ActivateQuiz(_ context.Context, id int64) (quiz.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	if !q.IsPublished || q.IsActive {
		return quiz.Quiz{}, quiz.ErrStateConflict
	}
	delete(s.answers, id)

	q.IsActive = true
	q.IsPaused = false
	q.PausedAt = nil
	q.PausedSeconds = 0
	q.SessionCount++
	q.UpdatedAt = s.clock()
	s.quizzes[id] = q
	return q, nil
}

func (s *Store) PauseQuiz(_ context.Context, id int64, now time.Time) (quiz.Quiz, error) {
	return s.transition(id, func(q *quiz.Quiz) error {
		if !q.IsActive || q.IsPaused {
			return quiz.ErrStateConflict
		}
		pausedAt := now
		q.IsPaused = true
		q.PausedAt = &pausedAt
		return nil
	})
}

func (s *Store) ResumeQuiz(_ context.Context, id int64, now time.Time) (quiz.Quiz, error) {
	return s.transition(id, func(q *quiz.Quiz) error {
		if !q.IsActive || !q.IsPaused {
			return quiz.ErrStateConflict
		}
		if q.PausedAt != nil && now.After(*q.PausedAt) {
			q.PausedSeconds += int(now.Sub(*q.PausedAt).Seconds())
		}
		q.IsPaused = false
		q.PausedAt = nil
		return nil
	})
}

func (s *Store) StopQuiz(_ context.Context, id int64) (quiz.Quiz, error) {
	return s.transition(id, func(q *quiz.Quiz) error {
		q.IsActive = false
		q.IsPublished = false
		q.IsPaused = false
		q.PausedAt = nil
		q.PausedSeconds = 0
		return nil
	})
}

func (s *Store) ResetQuiz(_ context.Context, id int64) (quiz.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	delete(s.answers, id)

	q.IsActive = false
	q.IsPaused = false
	q.PausedAt = nil
	q.PausedSeconds = 0
	q.SessionCount++
	q.UpdatedAt = s.clock()
	s.quizzes[id] = q
	return q, nil
}

func (s *Store) ReplaceAnswer(_ context.Context, session int, a quiz.Answer) (quiz.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[a.QuizID]
	if !ok {
		return quiz.Answer{}, quiz.ErrQuizNotFound
	}
	if err := quiz.CheckAnswerable(q.IsActive, q.IsPaused, q.SessionCount, session); err != nil {
		return quiz.Answer{}, err
	}

	kept := s.answers[a.QuizID][:0:0]
	for _, existing := range s.answers[a.QuizID] {
		if existing.QuestionID == a.QuestionID && existing.ParticipantID == a.ParticipantID {
			continue
		}
		kept = append(kept, existing)
	}

	s.nextAnswerID++
	a.ID = s.nextAnswerID
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = s.clock()
	}
	s.answers[a.QuizID] = append(kept, a)
	return a, nil
}

func (s *Store) ListAnswers(_ context.Context, quizID int64) ([]quiz.Answer, error) {
	return s.filterAnswers(quizID, func(quiz.Answer) bool { return true }), nil
}

func (s *Store) ListQuestionAnswers(_ context.Context, quizID, questionID int64) ([]quiz.Answer, error) {
	return s.filterAnswers(quizID, func(a quiz.Answer) bool { return a.QuestionID == questionID }), nil
}

func (s *Store) ListParticipantAnswers(_ context.Context, quizID int64, participantID string) ([]quiz.Answer, error) {
	return s.filterAnswers(quizID, func(a quiz.Answer) bool { return a.ParticipantID == participantID }), nil
}

func (s *Store) CreateResult(_ context.Context, r quiz.Result) (quiz.Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[r.QuizID]; !ok {
		return quiz.Result{}, false, quiz.ErrQuizNotFound
	}
	for _, existing := range s.results[r.QuizID] {
		if existing.ParticipantID == r.ParticipantID {
			return existing, false, nil
		}
	}

	s.nextResultID++
	r.ID = s.nextResultID
	r.CreatedAt = s.clock()
	s.results[r.QuizID] = append(s.results[r.QuizID], r)
	return r, true, nil
}

func (s *Store) ListResults(_ context.Context, quizID int64) ([]quiz.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]quiz.Result(nil), s.results[quizID]...), nil
}

func (s *Store) InsertSnapshot(_ context.Context, snap quiz.Snapshot) (quiz.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[snap.QuizID]; !ok {
		return quiz.Snapshot{}, quiz.ErrQuizNotFound
	}
	s.nextSnapshotID++
	snap.ID = s.nextSnapshotID
	if snap.GeneratedAt.IsZero() {
		snap.GeneratedAt = s.clock()
	}
	s.snapshots[snap.QuizID] = append(s.snapshots[snap.QuizID], snap)
	return snap, nil
}

func (s *Store) LatestSnapshot(_ context.Context, quizID int64) (quiz.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[quizID]
	if len(snaps) == 0 {
		return quiz.Snapshot{}, quiz.ErrSnapshotNotFound
	}
	return snaps[len(snaps)-1], nil
}

func (s *Store) filterAnswers(quizID int64, keep func(quiz.Answer) bool) []quiz.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []quiz.Answer
	for _, a := range s.answers[quizID] {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

func (s *Store) update(id int64, fn func(q *quiz.Quiz) error) error {
	_, err := s.transition(id, fn)
	return err
}

func (s *Store) transition(id int64, fn func(q *quiz.Quiz) error) (quiz.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	if err := fn(&q); err != nil {
		return quiz.Quiz{}, err
	}
	q.UpdatedAt = s.clock()
	s.quizzes[id] = q
	return q, nil
}

var _ quiz.Store = (*Store)(nil)
