package memory

import (
	"context"
	"sync"

	"quiz-session-service/internal/domain"
)

// SetStore is an in-memory implementation of app.SetRepository, used for
// tests and for running the server without Postgres.
type SetStore struct {
	mu   sync.RWMutex
	sets map[string]*domain.QuestionSet
}

func NewSetStore(sets ...domain.QuestionSet) *SetStore {
	store := &SetStore{sets: make(map[string]*domain.QuestionSet)}
	for i := range sets {
		set := sets[i]
		store.sets[set.ID] = &set
	}
	return store
}

// Put inserts or replaces a set.
func (s *SetStore) Put(set domain.QuestionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set.ID] = &set
}

func (s *SetStore) GetSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[setID]
	if !ok {
		return domain.QuestionSet{}, domain.ErrSetNotFound
	}
	return *set, nil
}

func (s *SetStore) GetQuestions(_ context.Context, setID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[setID]
	if !ok {
		return nil, domain.ErrSetNotFound
	}
	if len(set.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	questions := make([]domain.Question, len(set.Questions))
	copy(questions, set.Questions)
	return questions, nil
}

// ToggleActive flips a set's activation. Enabling deactivates every sibling
// set under the same event first, all under one lock, so concurrent starts
// never observe two active sets.
func (s *SetStore) ToggleActive(_ context.Context, setID string, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.sets[setID]
	if !ok {
		return domain.ErrSetNotFound
	}
	if enable {
		for _, set := range s.sets {
			if set.EventID == target.EventID {
				set.Active = false
			}
		}
		target.Active = true
	} else {
		target.Active = false
	}
	return nil
}
