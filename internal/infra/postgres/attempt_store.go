package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

const uniqueViolation = "23505"

// AttemptStore persists session attempts in Postgres. The one-open-attempt
// invariant is a partial unique index on (participant_id, set_id) where
// completed_at IS NULL, so the race between two concurrent starts is decided
// by the database: the loser gets a unique violation and resumes the
// winner's attempt.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) FindOpen(ctx context.Context, participantID, setID string) (*domain.SessionAttempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, participant_id, set_id, started_at, deadline, completed_at,
		        answers, score, correct_count, wrong_count, skipped_count,
		        percentage, time_taken_seconds, submit_reason
		 FROM session_attempts
		 WHERE participant_id=$1 AND set_id=$2 AND completed_at IS NULL`,
		participantID, setID,
	)
	attempt, err := scanAttempt(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) CreateOpen(ctx context.Context, attempt *domain.SessionAttempt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_attempts
		   (id, participant_id, set_id, started_at, deadline, answers, submit_reason)
		 VALUES ($1, $2, $3, $4, $5, '[]'::jsonb, '')`,
		attempt.ID, attempt.ParticipantID, attempt.SetID, attempt.StartedAt, attempt.Deadline,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAttemptConflict
	}
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

// CompleteOpen writes the scored result and completion timestamp only if the
// attempt is still open. Zero rows affected means someone else already
// completed it; the caller's submission loses and the stored result stands.
func (s *AttemptStore) CompleteOpen(ctx context.Context, attempt *domain.SessionAttempt) error {
	answers, err := json.Marshal(answersOrEmpty(attempt.Answers))
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE session_attempts SET
		   completed_at=$2, answers=$3::jsonb, score=$4, correct_count=$5,
		   wrong_count=$6, skipped_count=$7, percentage=$8,
		   time_taken_seconds=$9, submit_reason=$10
		 WHERE id=$1 AND completed_at IS NULL`,
		attempt.ID, attempt.CompletedAt, answers, attempt.Score, attempt.CorrectCount,
		attempt.WrongCount, attempt.SkippedCount, attempt.Percentage,
		attempt.TimeTakenSeconds, string(attempt.SubmitReason),
	)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotOpen
	}
	return nil
}

func (s *AttemptStore) ListCompleted(ctx context.Context, participantID string, limit int) ([]domain.SessionAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, participant_id, set_id, started_at, deadline, completed_at,
		        answers, score, correct_count, wrong_count, skipped_count,
		        percentage, time_taken_seconds, submit_reason
		 FROM session_attempts
		 WHERE participant_id=$1 AND completed_at IS NOT NULL
		 ORDER BY completed_at DESC LIMIT $2`,
		participantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed: %w", err)
	}
	defer rows.Close()

	var attempts []domain.SessionAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, *attempt)
	}
	return attempts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (*domain.SessionAttempt, error) {
	var (
		attempt domain.SessionAttempt
		answers []byte
		reason  string
	)
	err := row.Scan(
		&attempt.ID, &attempt.ParticipantID, &attempt.SetID,
		&attempt.StartedAt, &attempt.Deadline, &attempt.CompletedAt,
		&answers, &attempt.Score, &attempt.CorrectCount, &attempt.WrongCount,
		&attempt.SkippedCount, &attempt.Percentage, &attempt.TimeTakenSeconds, &reason,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &attempt.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	attempt.SubmitReason = domain.ForceSubmitReason(reason)
	return &attempt, nil
}

func answersOrEmpty(answers []string) []string {
	if answers == nil {
		return []string{}
	}
	return answers
}
