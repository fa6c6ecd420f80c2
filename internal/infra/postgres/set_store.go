package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

// SetStore is the authoritative Postgres store for question sets. Question
// lists live as JSONB next to the set row; order inside the document is the
// order answers are graded against.
type SetStore struct {
	pool *pgxpool.Pool
}

func NewSetStore(pool *pgxpool.Pool) *SetStore {
	return &SetStore{pool: pool}
}

func (s *SetStore) GetSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	var (
		set domain.QuestionSet
		raw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, name, time_limit_minutes, active, questions
		 FROM question_sets WHERE id=$1`, setID,
	).Scan(&set.ID, &set.EventID, &set.Name, &set.TimeLimitMinutes, &set.Active, &raw)
	if err == pgx.ErrNoRows {
		return domain.QuestionSet{}, domain.ErrSetNotFound
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load set: %w", err)
	}
	if err := json.Unmarshal(raw, &set.Questions); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return set, nil
}

func (s *SetStore) GetQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	set, err := s.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	if len(set.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return set.Questions, nil
}

// ToggleActive enforces set exclusivity inside one transaction: enabling a
// set first deactivates every sibling under the same event, so readers never
// observe two active sets.
func (s *SetStore) ToggleActive(ctx context.Context, setID string, enable bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback(ctx)

	if enable {
		if _, err := tx.Exec(ctx,
			`UPDATE question_sets SET active=false
			 WHERE event_id=(SELECT event_id FROM question_sets WHERE id=$1)`, setID,
		); err != nil {
			return fmt.Errorf("deactivate siblings: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `UPDATE question_sets SET active=$2 WHERE id=$1`, setID, enable)
	if err != nil {
		return fmt.Errorf("toggle set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSetNotFound
	}
	return tx.Commit(ctx)
}

// CreateSet inserts or replaces a set; used by the ingestion pipeline.
func (s *SetStore) CreateSet(ctx context.Context, set domain.QuestionSet) error {
	data, err := json.Marshal(set.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO question_sets (id, event_id, name, time_limit_minutes, active, questions)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		 ON CONFLICT (id) DO UPDATE SET
		   event_id=EXCLUDED.event_id, name=EXCLUDED.name,
		   time_limit_minutes=EXCLUDED.time_limit_minutes,
		   active=EXCLUDED.active, questions=EXCLUDED.questions`,
		set.ID, set.EventID, set.Name, set.TimeLimitMinutes, set.Active, data,
	)
	if err != nil {
		return fmt.Errorf("insert set: %w", err)
	}
	return nil
}
