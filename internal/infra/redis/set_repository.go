package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// SetRepository caches question lists in Redis in front of an authoritative
// store. Question content is immutable once ingested, so cached entries only
// need a TTL, no invalidation. Set metadata — in particular the Active flag —
// is always read through to the inner store: activation toggles must be
// visible to concurrent starts immediately, never through a stale cache.
type SetRepository struct {
	client *redis.Client
	inner  app.SetRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewSetRepository(client *redis.Client, inner app.SetRepository, ttl time.Duration) *SetRepository {
	return &SetRepository{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SetRepository) GetSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	return r.inner.GetSet(ctx, setID)
}

func (r *SetRepository) ToggleActive(ctx context.Context, setID string, enable bool) error {
	return r.inner.ToggleActive(ctx, setID, enable)
}

func (r *SetRepository) GetQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	key := r.questionsKey(setID)

	if questions, ok := r.fromCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.fromCache(ctx, key); ok {
			return questions, nil
		}

		questions, err := r.inner.GetQuestions(ctx, setID)
		if err != nil {
			return nil, err
		}

		if data, merr := json.Marshal(questions); merr == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *SetRepository) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false
	}
	return questions, len(questions) > 0
}

func (r *SetRepository) questionsKey(setID string) string {
	return "set:" + setID + ":questions"
}

func (r *SetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
