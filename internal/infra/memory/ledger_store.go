package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

// LedgerStore is an in-memory implementation of app.LedgerStore and
// app.RedemptionStore. Transactions are optimistic: state is read under the
// lock, the callback runs unlocked, and the write is committed only if the
// versions it read are still current.
type LedgerStore struct {
	mu          sync.Mutex
	accounts    map[string]*account
	redemptions map[string]*redemptionDoc
}

type account struct {
	balance int64
	version int64
	entries []domain.LedgerEntry
}

type redemptionDoc struct {
	req     domain.RedemptionRequest
	version int64
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts:    make(map[string]*account),
		redemptions: make(map[string]*redemptionDoc),
	}
}

func (s *LedgerStore) Transact(ctx context.Context, op app.LedgerOp, fn func(app.LedgerState) (app.LedgerWrite, error)) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	acc := s.accountLocked(op.UserID)
	state := app.LedgerState{Balance: acc.balance}
	accVersion := acc.version
	var redVersion int64
	if op.RedemptionID != "" {
		if doc, ok := s.redemptions[op.RedemptionID]; ok {
			req := doc.req
			state.Redemption = &req
			redVersion = doc.version
		}
	}
	s.mu.Unlock()

	write, err := fn(state)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc = s.accountLocked(op.UserID)
	if acc.version != accVersion {
		return 0, domain.ErrTxConflict
	}
	var doc *redemptionDoc
	if write.Redemption != nil {
		var ok bool
		doc, ok = s.redemptions[write.Redemption.ID]
		if !ok {
			return 0, domain.ErrRedemptionNotFound
		}
		if doc.version != redVersion {
			return 0, domain.ErrTxConflict
		}
	}

	acc.balance += write.Entry.Amount
	acc.version++
	acc.entries = append(acc.entries, write.Entry)
	if doc != nil {
		doc.req = *write.Redemption
		doc.version++
	}
	return acc.balance, nil
}

func (s *LedgerStore) Balance(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[userID]; ok {
		return acc.balance, nil
	}
	return 0, nil
}

func (s *LedgerStore) Entries(_ context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, nil
	}
	n := len(acc.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.LedgerEntry, 0, n)
	for i := len(acc.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, acc.entries[i])
	}
	return out, nil
}

func (s *LedgerStore) CreateRedemption(_ context.Context, req domain.RedemptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redemptions[req.ID] = &redemptionDoc{req: req}
	return nil
}

func (s *LedgerStore) GetRedemption(_ context.Context, id string) (domain.RedemptionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.redemptions[id]
	if !ok {
		return domain.RedemptionRequest{}, domain.ErrRedemptionNotFound
	}
	return doc.req, nil
}

func (s *LedgerStore) TransitionRedemption(_ context.Context, req domain.RedemptionRequest, from domain.RedemptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.redemptions[req.ID]
	if !ok {
		return domain.ErrRedemptionNotFound
	}
	if doc.req.Status != from {
		return domain.ErrRedemptionProcessed
	}
	doc.req = req
	doc.version++
	return nil
}

func (s *LedgerStore) ListRedemptions(_ context.Context, status domain.RedemptionStatus) ([]domain.RedemptionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RedemptionRequest
	for _, doc := range s.redemptions {
		if doc.req.Status == status {
			out = append(out, doc.req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (s *LedgerStore) accountLocked(userID string) *account {
	acc, ok := s.accounts[userID]
	if !ok {
		acc = &account{}
		s.accounts[userID] = acc
	}
	return acc
}
