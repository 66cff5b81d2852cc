package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/scoring"
)

func startSession(t *testing.T) (*fixture, *app.PlaySession) {
	t.Helper()
	f := newFixture(catalog("science", 20, 10, 10), app.QuizConfig{})
	session, err := f.quiz.StartSession(context.Background(), "u1", []string{"science"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return f, session
}

func TestAnswerScoredOnce(t *testing.T) {
	_, session := startSession(t)

	delta, ok, err := session.Answer(0, "ok")
	if err != nil || !ok {
		t.Fatalf("answer: ok=%v err=%v", ok, err)
	}
	if delta.Outcome != scoring.OutcomeCorrect || delta.Points != scoring.CorrectPoints {
		t.Fatalf("unexpected delta %+v", delta)
	}
	if _, ok, _ := session.Answer(0, "no"); ok {
		t.Fatalf("expected duplicate answer to be ignored")
	}
	if expired, _ := session.Expire(0); expired {
		t.Fatalf("expected expiry after an answer to be ignored")
	}
	if session.Score() != 2 {
		t.Fatalf("expected score 2, got %d", session.Score())
	}
	if _, _, err := session.Answer(99, "ok"); !errors.Is(err, domain.ErrQuestionIndex) {
		t.Fatalf("expected ErrQuestionIndex, got %v", err)
	}
}

func TestTapRacingExpiryResolvesOnce(t *testing.T) {
	_, session := startSession(t)
	events, cancel := session.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, ok, _ := session.Answer(0, "ok")
		results <- ok
	}()
	go func() {
		defer wg.Done()
		ok, _ := session.Expire(0)
		results <- ok
	}()
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one resolution, got %d", wins)
	}
	ev := <-events
	if ev.Index != 0 || (ev.Type != app.SessionEventDelta && ev.Type != app.SessionEventExpired) {
		t.Fatalf("unexpected event %+v", ev)
	}
	select {
	case extra := <-events:
		t.Fatalf("expected a single event, got another %+v", extra)
	default:
	}
}

func TestPresentCountsOnce(t *testing.T) {
	f, session := startSession(t)

	for i := 0; i < 3; i++ {
		if _, err := session.Present(0); err != nil {
			t.Fatalf("present: %v", err)
		}
	}
	if _, err := session.Skip(0); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if err := f.quiz.Abandon(context.Background(), session); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	rec, _ := f.exposures.LoadExposure(context.Background(), "u1")
	if rec.AttemptCounter != 1 {
		t.Fatalf("expected counter 1, got %d", rec.AttemptCounter)
	}
}

func TestNextIndexAdvances(t *testing.T) {
	_, session := startSession(t)

	if next, ok := session.NextIndex(); !ok || next != 0 {
		t.Fatalf("expected next index 0, got %d", next)
	}
	_, _, _ = session.Answer(0, "ok")
	_, _ = session.Skip(1)
	if next, ok := session.NextIndex(); !ok || next != 2 {
		t.Fatalf("expected next index 2, got %d", next)
	}
	for i := 2; i < session.Len(); i++ {
		_, _ = session.Expire(i)
	}
	if _, ok := session.NextIndex(); ok {
		t.Fatalf("expected all indexes resolved")
	}
}

func TestSingleDriverAttach(t *testing.T) {
	f, session := startSession(t)

	if err := session.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := session.Attach(); !errors.Is(err, domain.ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	seq := session.Detach()
	if !session.Idle(seq) {
		t.Fatalf("expected idle session after detach")
	}
	if err := session.Attach(); err != nil {
		t.Fatalf("reattach: %v", err)
	}
	session.Detach()
	if session.Idle(seq) {
		t.Fatalf("stale detach must not report idle after a reattach")
	}

	if err := f.quiz.Abandon(context.Background(), session); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if err := session.Attach(); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted, got %v", err)
	}
}

func TestAbandonIdleLosesToResume(t *testing.T) {
	ctx := context.Background()
	f, session := startSession(t)

	if err := session.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}
	seq := session.Detach()
	// the client comes back before the grace timer fires
	if err := session.Attach(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	abandoned, err := f.quiz.AbandonIdle(ctx, session, seq)
	if err != nil || abandoned {
		t.Fatalf("expected the resumed session to survive, abandoned=%v err=%v", abandoned, err)
	}
	if _, err := session.Present(0); err != nil {
		t.Fatalf("expected the resumed session to stay playable: %v", err)
	}

	seq = session.Detach()
	abandoned, err = f.quiz.AbandonIdle(ctx, session, seq)
	if err != nil || !abandoned {
		t.Fatalf("expected idle session to be abandoned, abandoned=%v err=%v", abandoned, err)
	}
	if err := session.Attach(); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted, got %v", err)
	}
	rec, _ := f.exposures.LoadExposure(ctx, "u1")
	if rec.AttemptCounter != 1 {
		t.Fatalf("expected the shown question to be saved, got %+v", rec)
	}
}
