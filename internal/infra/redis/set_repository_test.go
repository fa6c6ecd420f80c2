package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"quiz-session-service/internal/domain"
)

// countingStore wires an in-memory question set behind a call counter so
// tests can tell cache hits from loads.
type countingStore struct {
	set   domain.QuestionSet
	loads int64
}

func (s *countingStore) GetSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	if setID != s.set.ID {
		return domain.QuestionSet{}, domain.ErrSetNotFound
	}
	return s.set, nil
}

func (s *countingStore) GetQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	if setID != s.set.ID {
		return nil, domain.ErrSetNotFound
	}
	atomic.AddInt64(&s.loads, 1)
	return s.set.Questions, nil
}

func (s *countingStore) ToggleActive(ctx context.Context, setID string, enable bool) error {
	if setID != s.set.ID {
		return domain.ErrSetNotFound
	}
	s.set.Active = enable
	return nil
}

func newTestRepo(t *testing.T) (*SetRepository, *countingStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingStore{set: domain.QuestionSet{
		ID:               "set-1",
		EventID:          "event-1",
		Name:             "Capitals",
		TimeLimitMinutes: 10,
		Active:           true,
		Questions: []domain.Question{
			{
				Text:          "Capital of France?",
				Options:       []string{"Paris", "Lyon", "Nice", "Lille"},
				CorrectAnswer: "Paris",
				Category:      "geography",
				Topic:         "Europe",
				Level:         "easy",
			},
		},
	}}
	return NewSetRepository(client, inner, time.Minute), inner
}

func TestGetQuestionsCachesSecondRead(t *testing.T) {
	repo, inner := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.GetQuestions(ctx, "set-1")
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := repo.GetQuestions(ctx, "set-1")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if atomic.LoadInt64(&inner.loads) != 1 {
		t.Fatalf("expected one inner load, got %d", inner.loads)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Text != first[0].Text {
		t.Fatalf("cached read must match origin: %+v vs %+v", first, second)
	}
}

func TestGetQuestionsErrorNotCached(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetQuestions(ctx, "missing"); !errors.Is(err, domain.ErrSetNotFound) {
		t.Fatalf("expected ErrSetNotFound, got %v", err)
	}
}

func TestToggleActiveBypassesCache(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// warm the question cache, then deactivate
	if _, err := repo.GetQuestions(ctx, "set-1"); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if err := repo.ToggleActive(ctx, "set-1", false); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	set, err := repo.GetSet(ctx, "set-1")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if set.Active {
		t.Fatalf("Active flag must never be served stale")
	}
}
