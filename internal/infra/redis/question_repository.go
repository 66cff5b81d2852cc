package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the candidate questions of one category from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, category string) ([]domain.Question, error)
}

// QuestionRepository caches each category's candidates in Redis and falls back
// to a loader on cache miss. Candidates are stored as a JSON array:
// SET questions:{category} [...] EX ttl
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) Questions(ctx context.Context, category string) ([]domain.Question, error) {
	key := r.key(category)
	if qs, ok := r.cached(ctx, key); ok {
		return qs, nil
	}

	result, err, _ := r.sf.Do(category, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if qs, ok := r.cached(ctx, key); ok {
			return qs, nil
		}

		qs, err := r.loader.LoadQuestions(ctx, category)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(qs)
		if err != nil {
			return nil, err
		}
		// best-effort fill; a cache write failure must not fail the read
		_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		// corrupt entry: drop it and reload
		_ = r.client.Del(ctx, key).Err()
		return nil, false
	}
	return qs, true
}

// Invalidate drops the cached candidates of category.
func (r *QuestionRepository) Invalidate(ctx context.Context, category string) error {
	err := r.client.Del(ctx, r.key(category)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (r *QuestionRepository) key(category string) string {
	return "questions:" + category
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
