package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/metrics"
	"github.com/google/uuid"
)

// Routing keys of ledger events.
const (
	EventRedemptionRequested = "redemption.requested"
	EventRedemptionApproved  = "redemption.approved"
	EventRedemptionRejected  = "redemption.rejected"
)

// RetryConfig bounds the optimistic-transaction retry loop.
type RetryConfig struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns production defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     250 * time.Millisecond,
	}
}

// LedgerService is the only way balances change. Mutations are serialized per
// user through the store's conditional transactions; unrelated users never
// contend with each other.
type LedgerService struct {
	store       LedgerStore
	redemptions RedemptionStore
	retry       RetryConfig
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Metrics
	events      EventPublisher
}

// LedgerOption configures a LedgerService.
type LedgerOption func(*LedgerService)

func WithRetry(cfg RetryConfig) LedgerOption {
	return func(s *LedgerService) { s.retry = cfg }
}

// WithLedgerClock is used by tests for deterministic timestamps.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(s *LedgerService) { s.logger = logger }
}

func WithLedgerMetrics(m *metrics.Metrics) LedgerOption {
	return func(s *LedgerService) { s.metrics = m }
}

func WithLedgerEvents(p EventPublisher) LedgerOption {
	return func(s *LedgerService) { s.events = p }
}

func NewLedgerService(store LedgerStore, redemptions RedemptionStore, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:       store,
		redemptions: redemptions,
		retry:       DefaultRetryConfig(),
		now:         time.Now,
		logger:      slog.Default(),
		events:      noopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Balance returns the user's current balance.
func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.store.Balance(ctx, userID)
}

// Entries returns the newest ledger entries first.
func (s *LedgerService) Entries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	return s.store.Entries(ctx, userID, limit)
}

// Credit adds amount to the user's balance.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64, title, desc string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return s.commit(ctx, "credit", LedgerOp{UserID: userID}, func(LedgerState) (LedgerWrite, error) {
		return LedgerWrite{Entry: s.entry(userID, amount, title, desc)}, nil
	})
}

// Debit removes amount from the user's balance or fails with
// domain.ErrInsufficientFunds leaving everything untouched.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64, title, desc string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return s.commit(ctx, "debit", LedgerOp{UserID: userID}, func(st LedgerState) (LedgerWrite, error) {
		if st.Balance < amount {
			return LedgerWrite{}, domain.ErrInsufficientFunds
		}
		return LedgerWrite{Entry: s.entry(userID, -amount, title, desc)}, nil
	})
}

var errNothingToDebit = errors.New("penalty clamped to zero")

// ApplySessionDelta books a quiz outcome. A negative delta is a penalty that
// clamps at zero instead of failing, so a user is never blocked from playing
// by owing points.
func (s *LedgerService) ApplySessionDelta(ctx context.Context, userID string, delta int64, title, desc string) (int64, error) {
	switch {
	case delta > 0:
		return s.Credit(ctx, userID, delta, title, desc)
	case delta == 0:
		return s.store.Balance(ctx, userID)
	}

	var current int64
	balance, err := s.commit(ctx, "penalty", LedgerOp{UserID: userID}, func(st LedgerState) (LedgerWrite, error) {
		current = st.Balance
		amount := -delta
		if amount > st.Balance {
			amount = st.Balance
		}
		if amount <= 0 {
			return LedgerWrite{}, errNothingToDebit
		}
		return LedgerWrite{Entry: s.entry(userID, -amount, title, desc)}, nil
	})
	if errors.Is(err, errNothingToDebit) {
		return current, nil
	}
	return balance, err
}

// RequestRedemption files a pending redemption. Balance is only checked at approval.
func (s *LedgerService) RequestRedemption(ctx context.Context, userID, rewardID string, price int64) (domain.RedemptionRequest, error) {
	if price <= 0 {
		return domain.RedemptionRequest{}, domain.ErrInvalidAmount
	}
	req := domain.RedemptionRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		RewardID:    rewardID,
		Price:       price,
		Status:      domain.RedemptionPending,
		RequestedAt: s.now().UTC(),
	}
	if err := s.redemptions.CreateRedemption(ctx, req); err != nil {
		return domain.RedemptionRequest{}, fmt.Errorf("create redemption: %w", err)
	}
	s.metrics.Redemption(string(domain.RedemptionPending))
	s.publish(ctx, EventRedemptionRequested, req)
	return req, nil
}

// GetRedemption loads a redemption request.
func (s *LedgerService) GetRedemption(ctx context.Context, id string) (domain.RedemptionRequest, error) {
	return s.redemptions.GetRedemption(ctx, id)
}

// PendingRedemptions lists requests awaiting an admin decision.
func (s *LedgerService) PendingRedemptions(ctx context.Context) ([]domain.RedemptionRequest, error) {
	return s.redemptions.ListRedemptions(ctx, domain.RedemptionPending)
}

// ApproveRedemption checks the balance, debits the price, appends the ledger
// entry and marks the request approved with code, all in one transaction.
// On domain.ErrInsufficientFunds the request stays pending and nothing is written.
func (s *LedgerService) ApproveRedemption(ctx context.Context, requestID, code string) (domain.RedemptionRequest, int64, error) {
	req, err := s.redemptions.GetRedemption(ctx, requestID)
	if err != nil {
		return domain.RedemptionRequest{}, 0, err
	}
	if req.Status != domain.RedemptionPending {
		return req, 0, domain.ErrRedemptionProcessed
	}

	var approved domain.RedemptionRequest
	op := LedgerOp{UserID: req.UserID, RedemptionID: req.ID}
	balance, err := s.commit(ctx, "redemption", op, func(st LedgerState) (LedgerWrite, error) {
		if st.Redemption == nil {
			return LedgerWrite{}, domain.ErrRedemptionNotFound
		}
		cur := *st.Redemption
		if cur.Status != domain.RedemptionPending {
			return LedgerWrite{}, domain.ErrRedemptionProcessed
		}
		if st.Balance < cur.Price {
			return LedgerWrite{}, domain.ErrInsufficientFunds
		}
		now := s.now().UTC()
		cur.Status = domain.RedemptionApproved
		cur.Code = code
		cur.ProcessedAt = &now
		approved = cur
		entry := s.entry(cur.UserID, -cur.Price, "Reward redemption", fmt.Sprintf("reward %s (request %s)", cur.RewardID, cur.ID))
		return LedgerWrite{Entry: entry, Redemption: &cur}, nil
	})
	if err != nil {
		return domain.RedemptionRequest{}, 0, err
	}

	s.metrics.Redemption(string(domain.RedemptionApproved))
	s.logger.Info("redemption approved",
		"request_id", approved.ID,
		"user_id", approved.UserID,
		"price", approved.Price,
		"balance", balance)
	s.publish(ctx, EventRedemptionApproved, approved)
	return approved, balance, nil
}

// RejectRedemption records the decision and notes. No balance effect.
func (s *LedgerService) RejectRedemption(ctx context.Context, requestID, notes string) (domain.RedemptionRequest, error) {
	req, err := s.redemptions.GetRedemption(ctx, requestID)
	if err != nil {
		return domain.RedemptionRequest{}, err
	}
	if req.Status != domain.RedemptionPending {
		return req, domain.ErrRedemptionProcessed
	}
	now := s.now().UTC()
	req.Status = domain.RedemptionRejected
	req.Notes = notes
	req.ProcessedAt = &now
	if err := s.redemptions.TransitionRedemption(ctx, req, domain.RedemptionPending); err != nil {
		return domain.RedemptionRequest{}, err
	}

	s.metrics.Redemption(string(domain.RedemptionRejected))
	s.logger.Info("redemption rejected", "request_id", req.ID, "user_id", req.UserID)
	s.publish(ctx, EventRedemptionRejected, req)
	return req, nil
}

func (s *LedgerService) entry(userID string, amount int64, title, desc string) domain.LedgerEntry {
	kind := domain.EntryCredit
	if amount < 0 {
		kind = domain.EntryDebit
	}
	return domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Title:       title,
		Description: desc,
		Status:      domain.EntryStatusCompleted,
		CreatedAt:   s.now().UTC(),
	}
}

// commit runs fn through the store, retrying conflicts with exponential backoff.
func (s *LedgerService) commit(ctx context.Context, op string, lop LedgerOp, fn func(LedgerState) (LedgerWrite, error)) (int64, error) {
	var balance int64
	attempt := func() error {
		b, err := s.store.Transact(ctx, lop, fn)
		if err == nil {
			balance = b
			return nil
		}
		if errors.Is(err, domain.ErrTxConflict) {
			s.metrics.LedgerConflict()
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.retry.MaxRetries), ctx))
	switch {
	case err == nil:
		s.metrics.LedgerCommit(op)
		return balance, nil
	case errors.Is(err, domain.ErrTxConflict):
		s.metrics.LedgerRetriesExhausted()
		s.logger.Warn("ledger retries exhausted", "op", op, "user_id", lop.UserID, "retries", s.retry.MaxRetries)
		return 0, fmt.Errorf("%s for %s: %w: %w", op, lop.UserID, domain.ErrTransientStore, err)
	case errors.Is(err, domain.ErrInsufficientFunds):
		s.metrics.InsufficientFunds()
		return 0, err
	default:
		return 0, err
	}
}

func (s *LedgerService) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialBackoff
	b.MaxInterval = s.retry.MaxBackoff
	b.MaxElapsedTime = 0
	return b
}

func (s *LedgerService) publish(ctx context.Context, key string, payload any) {
	if err := s.events.Publish(ctx, key, payload); err != nil {
		s.logger.Error("publish event failed", "routing_key", key, "error", err)
	}
}
