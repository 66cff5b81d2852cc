package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

func credit(userID string, amount int64) func(app.LedgerState) (app.LedgerWrite, error) {
	return func(app.LedgerState) (app.LedgerWrite, error) {
		return app.LedgerWrite{Entry: domain.LedgerEntry{ID: "e", UserID: userID, Amount: amount}}, nil
	}
}

func TestLedgerStoreTransact(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	balance, err := store.Transact(ctx, app.LedgerOp{UserID: "u1"}, credit("u1", 40))
	if err != nil {
		t.Fatalf("transact: %v", err)
	}
	if balance != 40 {
		t.Fatalf("expected balance 40, got %d", balance)
	}
	if _, err := store.Transact(ctx, app.LedgerOp{UserID: "u1"}, credit("u1", -15)); err != nil {
		t.Fatalf("transact: %v", err)
	}

	got, _ := store.Balance(ctx, "u1")
	if got != 25 {
		t.Fatalf("expected balance 25, got %d", got)
	}
	entries, _ := store.Entries(ctx, "u1", 10)
	if len(entries) != 2 || entries[0].Amount != -15 {
		t.Fatalf("expected newest entry first, got %+v", entries)
	}
	entries, _ = store.Entries(ctx, "u1", 1)
	if len(entries) != 1 {
		t.Fatalf("expected limit 1, got %d", len(entries))
	}
}

func TestLedgerStoreDetectsConflict(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	_, err := store.Transact(ctx, app.LedgerOp{UserID: "u1"}, func(st app.LedgerState) (app.LedgerWrite, error) {
		// a concurrent writer commits between read and write
		if _, err := store.Transact(ctx, app.LedgerOp{UserID: "u1"}, credit("u1", 5)); err != nil {
			t.Fatalf("inner transact: %v", err)
		}
		return app.LedgerWrite{Entry: domain.LedgerEntry{Amount: 10}}, nil
	})
	if !errors.Is(err, domain.ErrTxConflict) {
		t.Fatalf("expected ErrTxConflict, got %v", err)
	}
	got, _ := store.Balance(ctx, "u1")
	if got != 5 {
		t.Fatalf("expected only the inner write, got %d", got)
	}
}

func TestLedgerStoreCallbackErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	_, err := store.Transact(ctx, app.LedgerOp{UserID: "u1"}, func(app.LedgerState) (app.LedgerWrite, error) {
		return app.LedgerWrite{}, domain.ErrInsufficientFunds
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	entries, _ := store.Entries(ctx, "u1", 0)
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestRedemptionTransition(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	req := domain.RedemptionRequest{ID: "r1", UserID: "u1", Price: 10, Status: domain.RedemptionPending, RequestedAt: time.Now()}
	if err := store.CreateRedemption(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, _ := store.ListRedemptions(ctx, domain.RedemptionPending)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}

	req.Status = domain.RedemptionRejected
	if err := store.TransitionRedemption(ctx, req, domain.RedemptionPending); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.TransitionRedemption(ctx, req, domain.RedemptionPending); !errors.Is(err, domain.ErrRedemptionProcessed) {
		t.Fatalf("expected ErrRedemptionProcessed, got %v", err)
	}
	if _, err := store.GetRedemption(ctx, "missing"); !errors.Is(err, domain.ErrRedemptionNotFound) {
		t.Fatalf("expected ErrRedemptionNotFound, got %v", err)
	}
}
