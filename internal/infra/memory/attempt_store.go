package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-session-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
// The open map is keyed by (participant, set), which is exactly the
// uniqueness invariant: a second CreateOpen for the same pair conflicts.
type AttemptStore struct {
	mu        sync.Mutex
	open      map[string]*domain.SessionAttempt
	completed []*domain.SessionAttempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{open: make(map[string]*domain.SessionAttempt)}
}

func openKey(participantID, setID string) string {
	return participantID + "|" + setID
}

func (s *AttemptStore) FindOpen(_ context.Context, participantID, setID string) (*domain.SessionAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.open[openKey(participantID, setID)]
	if !ok {
		return nil, nil
	}
	clone := *attempt
	return &clone, nil
}

func (s *AttemptStore) CreateOpen(_ context.Context, attempt *domain.SessionAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := openKey(attempt.ParticipantID, attempt.SetID)
	if _, ok := s.open[key]; ok {
		return domain.ErrAttemptConflict
	}
	clone := *attempt
	s.open[key] = &clone
	return nil
}

func (s *AttemptStore) CompleteOpen(_ context.Context, attempt *domain.SessionAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := openKey(attempt.ParticipantID, attempt.SetID)
	existing, ok := s.open[key]
	if !ok || existing.ID != attempt.ID {
		return domain.ErrAttemptNotOpen
	}
	clone := *attempt
	delete(s.open, key)
	s.completed = append(s.completed, &clone)
	return nil
}

func (s *AttemptStore) ListCompleted(_ context.Context, participantID string, limit int) ([]domain.SessionAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var attempts []domain.SessionAttempt
	for _, a := range s.completed {
		if a.ParticipantID == participantID {
			attempts = append(attempts, *a)
		}
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].CompletedAt.After(*attempts[j].CompletedAt)
	})
	if limit > 0 && len(attempts) > limit {
		attempts = attempts[:limit]
	}
	return attempts, nil
}
