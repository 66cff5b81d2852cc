// Package scheduler builds a difficulty-balanced quiz session from a candidate pool.
package scheduler

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

// Availability decides whether a question may be shown to the user now.
type Availability interface {
	IsAvailable(questionID string) bool
}

// Quota is the per-difficulty target for a session of a given size.
type Quota struct {
	Easy   int
	Medium int
	Hard   int
}

// QuotaFor splits n into 60/20/20 with hard absorbing rounding.
func QuotaFor(n int) Quota {
	if n <= 0 {
		return Quota{}
	}
	easy := n * 6 / 10
	medium := n * 2 / 10
	return Quota{Easy: easy, Medium: medium, Hard: n - easy - medium}
}

func (q Quota) of(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyEasy:
		return q.Easy
	case domain.DifficultyMedium:
		return q.Medium
	case domain.DifficultyHard:
		return q.Hard
	}
	return 0
}

// Result carries the selection and whether backfill was needed.
type Result struct {
	Questions  []domain.Question
	Candidates int
	Backfilled int
}

// Scheduler selects session questions. It is safe for concurrent use.
type Scheduler struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	logger *slog.Logger
	onFill func(n int)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand fixes the random source, mainly for tests.
func WithRand(rnd *rand.Rand) Option {
	return func(s *Scheduler) { s.rnd = rnd }
}

// WithLogger sets the logger used for backfill warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithBackfillHook is called with the number of backfilled questions.
func WithBackfillHook(fn func(n int)) Option {
	return func(s *Scheduler) { s.onFill = fn }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select filters pool by avail and picks up to n questions following the
// difficulty quotas, backfilling from the remaining candidates when a
// difficulty runs short. The pool is expected to be deduplicated; repeated IDs
// are dropped defensively.
func (s *Scheduler) Select(pool []domain.Question, n int, avail Availability) (Result, error) {
	filtered := make([]domain.Question, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, q := range pool {
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		if avail != nil && !avail.IsAvailable(q.ID) {
			continue
		}
		filtered = append(filtered, q)
	}
	if len(filtered) == 0 {
		return Result{}, domain.ErrNoQuestionsAvailable
	}
	if n <= 0 {
		return Result{Questions: []domain.Question{}, Candidates: len(filtered)}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buckets := make(map[domain.Difficulty][]domain.Question, len(domain.Difficulties))
	for _, q := range filtered {
		buckets[q.Difficulty] = append(buckets[q.Difficulty], q)
	}
	for d := range buckets {
		s.shuffle(buckets[d])
	}

	quota := QuotaFor(n)
	selected := make([]domain.Question, 0, n)
	picked := make(map[string]struct{}, n)
	for _, d := range domain.Difficulties {
		bucket := buckets[d]
		take := quota.of(d)
		if take > len(bucket) {
			take = len(bucket)
		}
		for _, q := range bucket[:take] {
			selected = append(selected, q)
			picked[q.ID] = struct{}{}
		}
	}

	backfilled := 0
	if len(selected) < n {
		rest := make([]domain.Question, 0, len(filtered)-len(selected))
		for _, q := range filtered {
			if _, ok := picked[q.ID]; !ok {
				rest = append(rest, q)
			}
		}
		s.shuffle(rest)
		for _, q := range rest {
			if len(selected) == n {
				break
			}
			selected = append(selected, q)
			backfilled++
		}
		s.logger.Warn("session quotas under-filled, backfilled from remaining pool",
			"requested", n,
			"selected", len(selected),
			"backfilled", backfilled,
			"candidates", len(filtered))
		if s.onFill != nil {
			s.onFill(backfilled)
		}
	}

	s.shuffle(selected)
	return Result{Questions: selected, Candidates: len(filtered), Backfilled: backfilled}, nil
}

func (s *Scheduler) shuffle(qs []domain.Question) {
	s.rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}
