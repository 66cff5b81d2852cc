package app_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/infra/memory"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/scheduler"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu       sync.Mutex
	received []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, key)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.received...)
}

// catalog builds easy/medium/hard questions in category; option "ok" is correct.
func catalog(category string, easy, medium, hard int) []domain.Question {
	var out []domain.Question
	add := func(d domain.Difficulty, n int) {
		for i := 0; i < n; i++ {
			out = append(out, domain.Question{
				ID:         fmt.Sprintf("%s-%s-%d", category, d, i),
				Category:   category,
				Difficulty: d,
				Prompt:     "prompt",
				Options: []domain.Option{
					{ID: "ok", Text: "right", Correct: true},
					{ID: "no", Text: "wrong"},
				},
			})
		}
	}
	add(domain.DifficultyEasy, easy)
	add(domain.DifficultyMedium, medium)
	add(domain.DifficultyHard, hard)
	return out
}

type fixture struct {
	quiz      *app.QuizService
	ledger    *app.LedgerService
	exposures *memory.ExposureStore
	progress  *memory.ProgressStore
	activity  *memory.ActivityStore
	sessions  *memory.SessionStore
	events    *recordingPublisher
	now       time.Time
}

func newFixture(questions []domain.Question, cfg app.QuizConfig) *fixture {
	f := &fixture{
		exposures: memory.NewExposureStore(),
		progress:  memory.NewProgressStore(),
		activity:  memory.NewActivityStore(),
		sessions:  memory.NewSessionStore(),
		events:    &recordingPublisher{},
		now:       time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC),
	}
	store := memory.NewLedgerStore()
	f.ledger = newLedger(store)
	clock := func() time.Time { return f.now }
	f.quiz = app.NewQuizService(app.QuizDeps{
		Questions: memory.NewQuestionRepository(memory.NewStaticQuestionLoader(questions, 0), time.Minute),
		Exposures: f.exposures,
		Progress:  f.progress,
		Activity:  f.activity,
		Sessions:  f.sessions,
		Ledger:    f.ledger,
		Scheduler: scheduler.New(scheduler.WithRand(rand.New(rand.NewSource(7))), scheduler.WithLogger(discardLogger())),
		Events:    f.events,
		Logger:    discardLogger(),
		Now:       clock,
	}, cfg)
	return f
}
