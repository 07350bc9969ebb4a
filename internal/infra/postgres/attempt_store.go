package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-assessment-engine/internal/domain"
)

const uniqueViolation = "23505"

const attemptColumns = `id, quiz_id, student_id, status, started_at, deadline,
	submitted_at, score, percentage_score, passed, answers`

// AttemptStore persists attempts as one row per attempt with the answers as
// a JSONB document. Keeping answers in the attempt row means a terminal
// transition and its per-answer grades commit in a single atomic update.
// The partial unique index uq_quiz_attempts_active makes CreateAttempt the
// atomic check-and-create the one-active-attempt invariant requires.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id=$1`, attemptID)
	return scanAttempt(row)
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (`+attemptColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb)`,
		attempt.ID, attempt.QuizID, attempt.StudentID, attempt.Status,
		attempt.StartedAt, attempt.Deadline, attempt.SubmittedAt,
		attempt.Score, attempt.PercentageScore, attempt.Passed, answers)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAttemptInProgress
	}
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) UpdateActiveAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status=$2, submitted_at=$3, score=$4, percentage_score=$5,
		     passed=$6, answers=$7::jsonb
		 WHERE id=$1 AND status=$8`,
		attempt.ID, attempt.Status, attempt.SubmittedAt, attempt.Score,
		attempt.PercentageScore, attempt.Passed, answers, domain.AttemptInProgress)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing attempt from a lost race on the guard.
		var status string
		err := s.pool.QueryRow(ctx, `SELECT status FROM quiz_attempts WHERE id=$1`, attempt.ID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAttemptNotFound
		}
		if err != nil {
			return fmt.Errorf("check attempt status: %w", err)
		}
		return domain.ErrAttemptNotActive
	}
	return nil
}

func (s *AttemptStore) SaveAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (`+attemptColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb)
		 ON CONFLICT (id) DO UPDATE SET
		   status=EXCLUDED.status, submitted_at=EXCLUDED.submitted_at,
		   score=EXCLUDED.score, percentage_score=EXCLUDED.percentage_score,
		   passed=EXCLUDED.passed, answers=EXCLUDED.answers`,
		attempt.ID, attempt.QuizID, attempt.StudentID, attempt.Status,
		attempt.StartedAt, attempt.Deadline, attempt.SubmittedAt,
		attempt.Score, attempt.PercentageScore, attempt.Passed, answers)
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) FindActiveAttempt(ctx context.Context, quizID, studentID string) (domain.QuizAttempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE quiz_id=$1 AND student_id=$2 AND status=$3`,
		quizID, studentID, domain.AttemptInProgress)
	return scanAttempt(row)
}

func (s *AttemptStore) FindScoredAttempts(ctx context.Context, quizID string) ([]domain.QuizAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE quiz_id=$1 AND status = ANY($2)
		 ORDER BY started_at`,
		quizID, []string{string(domain.AttemptCompleted), string(domain.AttemptTimedOut)})
	if err != nil {
		return nil, fmt.Errorf("find scored attempts: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func (s *AttemptStore) FindExpired(ctx context.Context, now time.Time) ([]domain.QuizAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE status=$1 AND deadline IS NOT NULL AND deadline < $2
		 ORDER BY started_at`,
		domain.AttemptInProgress, now)
	if err != nil {
		return nil, fmt.Errorf("find expired attempts: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func (s *AttemptStore) CountAttempts(ctx context.Context, quizID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id=$1`, quizID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func scanAttempt(row pgx.Row) (domain.QuizAttempt, error) {
	var (
		attempt domain.QuizAttempt
		status  string
		answers []byte
	)
	err := row.Scan(&attempt.ID, &attempt.QuizID, &attempt.StudentID, &status,
		&attempt.StartedAt, &attempt.Deadline, &attempt.SubmittedAt,
		&attempt.Score, &attempt.PercentageScore, &attempt.Passed, &answers)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	attempt.Status = domain.AttemptStatus(status)
	if err := json.Unmarshal(answers, &attempt.Answers); err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return attempt, nil
}

func collectAttempts(rows pgx.Rows) ([]domain.QuizAttempt, error) {
	var out []domain.QuizAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}
