package memory

import (
	"context"
	"errors"
	"testing"

	"quiz-session-service/internal/domain"
)

func sampleSet(id, eventID string, active bool) domain.QuestionSet {
	return domain.QuestionSet{
		ID:               id,
		EventID:          eventID,
		TimeLimitMinutes: 10,
		Active:           active,
		Questions: []domain.Question{
			{Text: "q1", Options: []string{"A", "B", "C", "D"}, CorrectAnswer: "A"},
		},
	}
}

func TestSetStoreGet(t *testing.T) {
	store := NewSetStore(sampleSet("set-1", "event-1", true))

	set, err := store.GetSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if !set.Active || set.TimeLimitMinutes != 10 {
		t.Fatalf("unexpected set: %+v", set)
	}

	if _, err := store.GetSet(context.Background(), "missing"); !errors.Is(err, domain.ErrSetNotFound) {
		t.Fatalf("expected ErrSetNotFound, got %v", err)
	}
}

func TestSetStoreGetQuestionsEmpty(t *testing.T) {
	empty := sampleSet("set-1", "event-1", true)
	empty.Questions = nil
	store := NewSetStore(empty)

	if _, err := store.GetQuestions(context.Background(), "set-1"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestToggleActiveExclusivePerEvent(t *testing.T) {
	store := NewSetStore(
		sampleSet("set-1", "event-1", true),
		sampleSet("set-2", "event-1", false),
		sampleSet("set-3", "event-2", true),
	)
	ctx := context.Background()

	if err := store.ToggleActive(ctx, "set-2", true); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	a, _ := store.GetSet(ctx, "set-1")
	b, _ := store.GetSet(ctx, "set-2")
	other, _ := store.GetSet(ctx, "set-3")
	if a.Active {
		t.Fatalf("sibling must be deactivated")
	}
	if !b.Active {
		t.Fatalf("target must be active")
	}
	if !other.Active {
		t.Fatalf("sets under other events must be untouched")
	}
}

func TestToggleActiveDisable(t *testing.T) {
	store := NewSetStore(sampleSet("set-1", "event-1", true))
	if err := store.ToggleActive(context.Background(), "set-1", false); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	set, _ := store.GetSet(context.Background(), "set-1")
	if set.Active {
		t.Fatalf("expected set disabled")
	}
}

func TestToggleActiveMissingSet(t *testing.T) {
	store := NewSetStore()
	if err := store.ToggleActive(context.Background(), "nope", true); !errors.Is(err, domain.ErrSetNotFound) {
		t.Fatalf("expected ErrSetNotFound, got %v", err)
	}
}
