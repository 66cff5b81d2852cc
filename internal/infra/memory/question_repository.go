package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the candidate questions of one category from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, category string) ([]domain.Question, error)
}

// QuestionRepository caches categories with TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedCategory
}

type cachedCategory struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCategory),
	}
}

func (r *QuestionRepository) Questions(ctx context.Context, category string) ([]domain.Question, error) {
	if qs, ok := r.cached(category, r.clock()); ok {
		return qs, nil
	}

	result, err, _ := r.sf.Do(category, func() (interface{}, error) {
		now := r.clock()
		if qs, ok := r.cached(category, now); ok {
			return qs, nil
		}

		qs, err := r.loader.LoadQuestions(ctx, category)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[category] = cachedCategory{
			questions: qs,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(category string, now time.Time) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[category]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return entry.questions, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory slice (useful for tests/demos).
type StaticQuestionLoader struct {
	byCategory map[string][]domain.Question
	limit      int
}

// NewStaticQuestionLoader groups questions by category. A positive limit caps
// how many are returned per category.
func NewStaticQuestionLoader(questions []domain.Question, limit int) *StaticQuestionLoader {
	byCategory := make(map[string][]domain.Question)
	for _, q := range questions {
		byCategory[q.Category] = append(byCategory[q.Category], q)
	}
	return &StaticQuestionLoader{byCategory: byCategory, limit: limit}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, category string) ([]domain.Question, error) {
	qs, ok := l.byCategory[category]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	if l.limit > 0 && len(qs) > l.limit {
		qs = qs[:l.limit]
	}
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out, nil
}
