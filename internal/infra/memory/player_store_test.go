package memory

import (
	"context"
	"testing"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

func TestExposureStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewExposureStore()

	rec := domain.ExposureRecord{Correct: []string{"q1"}, Wrong: []domain.WrongAnswer{{QuestionID: "q2", Counter: 3}}, AttemptCounter: 7}
	if err := store.SaveExposure(ctx, "u1", rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec.Correct[0] = "mutated"

	got, err := store.LoadExposure(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AttemptCounter != 7 || got.Correct[0] != "q1" || len(got.Wrong) != 1 {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestProgressStoreClampsNegatives(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	p, err := store.UpdateProgress(ctx, "u1", func(p *domain.PlayerProgress) {
		p.XP = -4
		p.AddSolved(domain.DifficultyHard, 2)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.XP != 0 || p.SolvedHard != 2 {
		t.Fatalf("unexpected progress %+v", p)
	}
	loaded, _ := store.LoadProgress(ctx, "u1")
	if loaded != p {
		t.Fatalf("expected %+v, got %+v", p, loaded)
	}
}

func TestActivityStoreCounts(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	_ = store.RecordActivity(ctx, "u1", "2026-10-14")
	_ = store.RecordActivity(ctx, "u1", "2026-10-14")
	_ = store.RecordActivity(ctx, "u1", "2026-10-13")

	counts, err := store.DailyCounts(ctx, "u1")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["2026-10-14"] != 2 || counts["2026-10-13"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	empty, _ := store.DailyCounts(ctx, "u2")
	if len(empty) != 0 {
		t.Fatalf("expected no activity, got %v", empty)
	}
}
