// Package repository persists quizzes, answers, results and leaderboard snapshots in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const quizColumns = `id, host_id, title, has_timer, overall_timer_minutes, show_leaderboard,
	is_locked, is_published, is_active, is_paused, join_code, publish_count,
	published_at, paused_at, paused_seconds, session_count, created_at, updated_at`

const questionColumns = `id, quiz_id, position, question_type, text, options, correct_answers,
	legacy_answer, points, time_limit, show_leaderboard`

const answerColumns = `id, quiz_id, question_id, participant_id, participant_name, response,
	is_correct, time_taken, points, submitted_at`

const resultColumns = `id, quiz_id, participant_id, participant_name, score, total, time_taken,
	total_points, created_at`

// Store implements quiz.Store on a pgx pool. Lifecycle updates carry their guard in the
// WHERE clause so a concurrent change surfaces as quiz.ErrStateConflict.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) CreateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO quizzes (host_id, title, has_timer, overall_timer_minutes, show_leaderboard)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+quizColumns,
		q.HostID, q.Title, q.HasTimer, q.OverallTimerMinutes, q.ShowLeaderboard)
	created, err := scanQuiz(row)
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return created, nil
}

func (s *Store) GetQuiz(ctx context.Context, id int64) (quiz.Quiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id)
	q, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("get quiz: %w", err)
	}
	return q, nil
}

func (s *Store) GetQuizByJoinCode(ctx context.Context, code string) (quiz.Quiz, error) {
	code = quiz.NormalizeJoinCode(code)
	if code == "" {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE join_code = $1`, code)
	q, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("get quiz by join code: %w", err)
	}
	return q, nil
}

func (s *Store) ListActiveQuizzes(ctx context.Context) ([]quiz.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active quizzes: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (quiz.Quiz, error) {
		return scanQuiz(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan active quizzes: %w", err)
	}
	return out, nil
}

func (s *Store) ListQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE quiz_id = $1 ORDER BY position`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (quiz.Question, error) {
		return scanQuestion(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan questions: %w", err)
	}
	if len(out) == 0 {
		if err := s.ensureQuiz(ctx, s.pool, quizID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AppendQuestions inserts questions after the existing ones while the quiz is still a draft.
func (s *Store) AppendQuestions(ctx context.Context, quizID int64, questions []quiz.Question) ([]quiz.Question, error) {
	var added []quiz.Question
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var locked bool
		err := tx.QueryRow(ctx, `SELECT is_locked FROM quizzes WHERE id = $1 FOR UPDATE`, quizID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return quiz.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("lock quiz row: %w", err)
		}
		if locked {
			return quiz.ErrQuizLocked
		}

		var next int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM questions WHERE quiz_id = $1`, quizID).Scan(&next); err != nil {
			return fmt.Errorf("next question position: %w", err)
		}

		added = make([]quiz.Question, 0, len(questions))
		for i, q := range questions {
			q.QuizID = quizID
			q.Order = next + i
			row := tx.QueryRow(ctx, `
				INSERT INTO questions (quiz_id, position, question_type, text, options, correct_answers,
					legacy_answer, points, time_limit, show_leaderboard)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				RETURNING id`,
				q.QuizID, q.Order, string(q.Type), q.Text, nonNilOptions(q.Options), nonNilStrings(q.CorrectAnswers),
				q.LegacyAnswer, q.Points, q.TimeLimit, q.ShowLeaderboard)
			if err := row.Scan(&q.ID); err != nil {
				return fmt.Errorf("insert question %d: %w", i, err)
			}
			added = append(added, q)
		}

		_, err = tx.Exec(ctx, `UPDATE quizzes SET updated_at = NOW() WHERE id = $1`, quizID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *Store) RenameQuiz(ctx context.Context, id int64, title string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE quizzes SET title = $2, updated_at = NOW() WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("rename quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return quiz.ErrQuizNotFound
	}
	return nil
}

// DeleteQuiz removes the quiz; questions, answers, results and snapshots cascade.
func (s *Store) DeleteQuiz(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return quiz.ErrQuizNotFound
	}
	return nil
}

func (s *Store) LockQuiz(ctx context.Context, id int64) (quiz.Quiz, error) {
	return s.transition(ctx, s.pool, id, `is_locked = TRUE`, `TRUE`)
}

// PublishQuiz keeps an existing join code and assigns joinCode otherwise.
func (s *Store) PublishQuiz(ctx context.Context, id int64, joinCode string, now time.Time) (quiz.Quiz, error) {
	q, err := s.transition(ctx, s.pool, id,
		`is_published = TRUE, publish_count = publish_count + 1, published_at = $2,
		 join_code = COALESCE(join_code, $3)`,
		`is_locked AND NOT is_active`,
		now.UTC(), joinCode)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return quiz.Quiz{}, quiz.ErrJoinCodeTaken
	}
	return q, err
}

// ActivateQuiz marks the quiz active, bumps session_count and deletes every answer in one
// transaction. The row update comes first so in-flight answer inserts are ordered against it.
func (s *Store) ActivateQuiz(ctx context.Context, id int64) (quiz.Quiz, error) {
	var out quiz.Quiz
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		out, err = s.transition(ctx, tx, id,
			`is_active = TRUE, is_paused = FALSE, paused_at = NULL, paused_seconds = 0,
			 session_count = session_count + 1`,
			`is_published AND NOT is_active`)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE quiz_id = $1`, id); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
		return nil
	})
	return out, err
}

func (s *Store) PauseQuiz(ctx context.Context, id int64, now time.Time) (quiz.Quiz, error) {
	return s.transition(ctx, s.pool, id,
		`is_paused = TRUE, paused_at = $2`,
		`is_active AND NOT is_paused`,
		now.UTC())
}

// ResumeQuiz folds now-paused_at (whole seconds) into paused_seconds.
func (s *Store) ResumeQuiz(ctx context.Context, id int64, now time.Time) (quiz.Quiz, error) {
	return s.transition(ctx, s.pool, id,
		`paused_seconds = paused_seconds +
			COALESCE(GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - paused_at))))::int, 0),
		 is_paused = FALSE, paused_at = NULL`,
		`is_active AND is_paused`,
		now.UTC())
}

func (s *Store) StopQuiz(ctx context.Context, id int64) (quiz.Quiz, error) {
	return s.transition(ctx, s.pool, id,
		`is_active = FALSE, is_published = FALSE, is_paused = FALSE, paused_at = NULL, paused_seconds = 0`,
		`TRUE`)
}

// ResetQuiz clears active/pause flags, bumps session_count and deletes every answer in one
// transaction.
func (s *Store) ResetQuiz(ctx context.Context, id int64) (quiz.Quiz, error) {
	var out quiz.Quiz
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		out, err = s.transition(ctx, tx, id,
			`is_active = FALSE, is_paused = FALSE, paused_at = NULL, paused_seconds = 0,
			 session_count = session_count + 1`,
			`TRUE`)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE quiz_id = $1`, id); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
		return nil
	})
	return out, err
}

// ReplaceAnswer deletes any prior answer for the same key and inserts a in one transaction.
// The quiz row is held FOR SHARE so start, stop and reset wait for the insert, and a transaction-
// scoped advisory lock on the key serializes racing submissions.
func (s *Store) ReplaceAnswer(ctx context.Context, session int, a quiz.Answer) (quiz.Answer, error) {
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now()
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			active, paused bool
			current        int
		)
		err := tx.QueryRow(ctx,
			`SELECT is_active, is_paused, session_count FROM quizzes WHERE id = $1 FOR SHARE`,
			a.QuizID).Scan(&active, &paused, &current)
		if errors.Is(err, pgx.ErrNoRows) {
			return quiz.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("lock quiz row: %w", err)
		}
		if err := quiz.CheckAnswerable(active, paused, current, session); err != nil {
			return err
		}

		key := fmt.Sprintf("answer:%d:%d:%s", a.QuizID, a.QuestionID, a.ParticipantID)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("lock answer key: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM answers WHERE quiz_id = $1 AND question_id = $2 AND participant_id = $3`,
			a.QuizID, a.QuestionID, a.ParticipantID); err != nil {
			return fmt.Errorf("delete previous answer: %w", err)
		}
		return tx.QueryRow(ctx, `
			INSERT INTO answers (quiz_id, question_id, participant_id, participant_name, response,
				is_correct, time_taken, points, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			a.QuizID, a.QuestionID, a.ParticipantID, a.ParticipantName, a.Response,
			a.IsCorrect, a.TimeTaken, a.Points, a.SubmittedAt.UTC()).Scan(&a.ID)
	})
	if err != nil {
		return quiz.Answer{}, mapForeignKey(err, "insert answer")
	}
	return a, nil
}

func (s *Store) ListAnswers(ctx context.Context, quizID int64) ([]quiz.Answer, error) {
	return s.queryAnswers(ctx, `WHERE quiz_id = $1`, quizID)
}

func (s *Store) ListQuestionAnswers(ctx context.Context, quizID, questionID int64) ([]quiz.Answer, error) {
	return s.queryAnswers(ctx, `WHERE quiz_id = $1 AND question_id = $2`, quizID, questionID)
}

func (s *Store) ListParticipantAnswers(ctx context.Context, quizID int64, participantID string) ([]quiz.Answer, error) {
	return s.queryAnswers(ctx, `WHERE quiz_id = $1 AND participant_id = $2`, quizID, participantID)
}

// CreateResult inserts r unless a result exists for (quiz, participant); created reports which.
func (s *Store) CreateResult(ctx context.Context, r quiz.Result) (quiz.Result, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO results (quiz_id, participant_id, participant_name, score, total, time_taken, total_points)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (quiz_id, participant_id) DO NOTHING
		RETURNING `+resultColumns,
		r.QuizID, r.ParticipantID, r.ParticipantName, r.Score, r.Total, r.TimeTaken, r.TotalPoints)
	created, err := scanResult(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return quiz.Result{}, false, mapForeignKey(err, "insert result")
	}

	row = s.pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM results WHERE quiz_id = $1 AND participant_id = $2`,
		r.QuizID, r.ParticipantID)
	existing, err := scanResult(row)
	if err != nil {
		return quiz.Result{}, false, fmt.Errorf("load existing result: %w", err)
	}
	return existing, false, nil
}

func (s *Store) ListResults(ctx context.Context, quizID int64) ([]quiz.Result, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+resultColumns+` FROM results WHERE quiz_id = $1 ORDER BY created_at, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (quiz.Result, error) {
		return scanResult(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	return out, nil
}

func (s *Store) InsertSnapshot(ctx context.Context, snap quiz.Snapshot) (quiz.Snapshot, error) {
	if snap.GeneratedAt.IsZero() {
		snap.GeneratedAt = time.Now()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO leaderboard_snapshots (quiz_id, generated_at, entries, source_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		snap.QuizID, snap.GeneratedAt.UTC(), snap.Entries, snap.SourceHash).Scan(&snap.ID)
	if err != nil {
		return quiz.Snapshot{}, mapForeignKey(err, "insert snapshot")
	}
	return snap, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, quizID int64) (quiz.Snapshot, error) {
	var snap quiz.Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, generated_at, entries, source_hash
		FROM leaderboard_snapshots
		WHERE quiz_id = $1
		ORDER BY generated_at DESC, id DESC
		LIMIT 1`, quizID).Scan(&snap.ID, &snap.QuizID, &snap.GeneratedAt, &snap.Entries, &snap.SourceHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return quiz.Snapshot{}, quiz.ErrSnapshotNotFound
	}
	if err != nil {
		return quiz.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// transition applies set to the quiz when guard holds. $1 is the quiz id; extra args start at $2.
func (s *Store) transition(ctx context.Context, db querier, id int64, set, guard string, args ...any) (quiz.Quiz, error) {
	sql := `UPDATE quizzes SET ` + set + `, updated_at = NOW()
		WHERE id = $1 AND (` + guard + `)
		RETURNING ` + quizColumns
	row := db.QueryRow(ctx, sql, append([]any{id}, args...)...)
	q, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.ensureQuiz(ctx, db, id); err != nil {
			return quiz.Quiz{}, err
		}
		return quiz.Quiz{}, quiz.ErrStateConflict
	}
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	return q, nil
}

func (s *Store) ensureQuiz(ctx context.Context, db querier, id int64) error {
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quizzes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check quiz: %w", err)
	}
	if !exists {
		return quiz.ErrQuizNotFound
	}
	return nil
}

func (s *Store) queryAnswers(ctx context.Context, where string, args ...any) ([]quiz.Answer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+answerColumns+` FROM answers `+where+` ORDER BY submitted_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (quiz.Answer, error) {
		var a quiz.Answer
		err := row.Scan(&a.ID, &a.QuizID, &a.QuestionID, &a.ParticipantID, &a.ParticipantName,
			&a.Response, &a.IsCorrect, &a.TimeTaken, &a.Points, &a.SubmittedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan answers: %w", err)
	}
	return out, nil
}

func scanQuiz(row pgx.Row) (quiz.Quiz, error) {
	var (
		q        quiz.Quiz
		joinCode *string
	)
	err := row.Scan(&q.ID, &q.HostID, &q.Title, &q.HasTimer, &q.OverallTimerMinutes, &q.ShowLeaderboard,
		&q.IsLocked, &q.IsPublished, &q.IsActive, &q.IsPaused, &joinCode, &q.PublishCount,
		&q.PublishedAt, &q.PausedAt, &q.PausedSeconds, &q.SessionCount, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if joinCode != nil {
		q.JoinCode = *joinCode
	}
	return q, nil
}

func scanQuestion(row pgx.Row) (quiz.Question, error) {
	var (
		q       quiz.Question
		rawType string
	)
	err := row.Scan(&q.ID, &q.QuizID, &q.Order, &rawType, &q.Text, &q.Options, &q.CorrectAnswers,
		&q.LegacyAnswer, &q.Points, &q.TimeLimit, &q.ShowLeaderboard)
	if err != nil {
		return quiz.Question{}, err
	}
	q.Type = quiz.ParseQuestionType(rawType)
	return q, nil
}

func scanResult(row pgx.Row) (quiz.Result, error) {
	var r quiz.Result
	err := row.Scan(&r.ID, &r.QuizID, &r.ParticipantID, &r.ParticipantName, &r.Score, &r.Total,
		&r.TimeTaken, &r.TotalPoints, &r.CreatedAt)
	return r, err
}

func mapForeignKey(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		if strings.Contains(pgErr.ConstraintName, "question") {
			return quiz.ErrQuestionNotFound
		}
		return quiz.ErrQuizNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nonNilOptions(opts []quiz.Option) []quiz.Option {
	if opts == nil {
		return []quiz.Option{}
	}
	return opts
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ quiz.Store = (*Store)(nil)
