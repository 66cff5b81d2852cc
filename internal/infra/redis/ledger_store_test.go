package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

func newLedgerService(store *LedgerStore) *app.LedgerService {
	return app.NewLedgerService(store, store,
		app.WithRetry(app.RetryConfig{MaxRetries: 500, InitialBackoff: time.Microsecond, MaxBackoff: 2 * time.Millisecond}),
		app.WithLedgerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestLedgerStoreCreditDebit(t *testing.T) {
	ctx := context.Background()
	mr, client := startRedis(t)
	ledger := newLedgerService(NewLedgerStore(client))

	if _, err := ledger.Credit(ctx, "u1", 100, "Top up", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ledger.Debit(ctx, "u1", 150, "Shop", ""); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	balance, err := ledger.Debit(ctx, "u1", 30, "Shop", "")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if balance != 70 {
		t.Fatalf("expected 70, got %d", balance)
	}
	if got, _ := mr.Get("ledger:u1:balance"); got != "70" {
		t.Fatalf("expected stored balance 70, got %q", got)
	}

	entries, err := ledger.Entries(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Amount != -30 || entries[1].Amount != 100 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestLedgerStoreConflictOnConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	mr, client := startRedis(t)
	store := NewLedgerStore(client)

	_, err := store.Transact(ctx, app.LedgerOp{UserID: "u1"}, func(st app.LedgerState) (app.LedgerWrite, error) {
		// another writer touches the watched key
		_ = mr.Set("ledger:u1:balance", "9")
		return app.LedgerWrite{Entry: domain.LedgerEntry{Amount: 1}}, nil
	})
	if !errors.Is(err, domain.ErrTxConflict) {
		t.Fatalf("expected ErrTxConflict, got %v", err)
	}
	if got, _ := mr.Get("ledger:u1:balance"); got != "9" {
		t.Fatalf("expected the other write to win, got %q", got)
	}
}

func TestLedgerStoreConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	_, client := startRedis(t)
	ledger := newLedgerService(NewLedgerStore(client))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Credit(ctx, "u1", 5, "Quiz reward", ""); err != nil {
				t.Errorf("credit: %v", err)
			}
		}()
	}
	wg.Wait()

	balance, _ := ledger.Balance(ctx, "u1")
	entries, _ := ledger.Entries(ctx, "u1", 0)
	if balance != 100 || len(entries) != 20 {
		t.Fatalf("expected 100 over 20 entries, got balance=%d entries=%d", balance, len(entries))
	}
}

func TestLedgerStoreRedemptionLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, client := startRedis(t)
	ledger := newLedgerService(NewLedgerStore(client))

	if _, err := ledger.Credit(ctx, "u1", 500, "Top up", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	req, err := ledger.RequestRedemption(ctx, "u1", "gift-card", 500)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	pending, _ := ledger.PendingRedemptions(ctx)
	if len(pending) != 1 || pending[0].ID != req.ID {
		t.Fatalf("unexpected pending %+v", pending)
	}

	_, balance, err := ledger.ApproveRedemption(ctx, req.ID, "CODE")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0, got %d", balance)
	}
	if ok, _ := mr.SIsMember("redemptions:approved", req.ID); !ok {
		t.Fatalf("expected request in approved set")
	}
	pending, _ = ledger.PendingRedemptions(ctx)
	if len(pending) != 0 {
		t.Fatalf("expected no pending requests, got %d", len(pending))
	}

	if _, _, err := ledger.ApproveRedemption(ctx, req.ID, "CODE"); !errors.Is(err, domain.ErrRedemptionProcessed) {
		t.Fatalf("expected ErrRedemptionProcessed, got %v", err)
	}
	if _, err := ledger.RejectRedemption(ctx, req.ID, "late"); !errors.Is(err, domain.ErrRedemptionProcessed) {
		t.Fatalf("expected ErrRedemptionProcessed on reject, got %v", err)
	}
	if _, err := ledger.GetRedemption(ctx, "missing"); !errors.Is(err, domain.ErrRedemptionNotFound) {
		t.Fatalf("expected ErrRedemptionNotFound, got %v", err)
	}
}

func TestLedgerStoreReject(t *testing.T) {
	ctx := context.Background()
	_, client := startRedis(t)
	store := NewLedgerStore(client)
	ledger := newLedgerService(store)

	req, _ := ledger.RequestRedemption(ctx, "u1", "gift-card", 50)
	rejected, err := ledger.RejectRedemption(ctx, req.ID, "no stock")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.RedemptionRejected {
		t.Fatalf("unexpected status %s", rejected.Status)
	}
	list, _ := store.ListRedemptions(ctx, domain.RedemptionRejected)
	if len(list) != 1 || list[0].Notes != "no stock" {
		t.Fatalf("unexpected rejected list %+v", list)
	}
}
