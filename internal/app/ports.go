package app

import (
	"context"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

// QuestionRepository serves deduplicated candidates for one category, capped per category.
type QuestionRepository interface {
	Questions(ctx context.Context, category string) ([]domain.Question, error)
}

// LedgerOp names the documents a ledger transaction reads and conditionally writes.
type LedgerOp struct {
	UserID string
	// RedemptionID, when set, joins the redemption document to the transaction.
	RedemptionID string
}

// LedgerState is the consistent snapshot handed to a transaction function.
type LedgerState struct {
	Balance    int64
	Redemption *domain.RedemptionRequest
}

// LedgerWrite is committed as one unit: balance += Entry.Amount, Entry appended,
// Redemption (if any) replaced.
type LedgerWrite struct {
	Entry      domain.LedgerEntry
	Redemption *domain.RedemptionRequest
}

// LedgerStore keeps one balance document per user plus its append-only entry log.
//
// Transact reads the state named by op, calls fn, and commits fn's write only if
// nothing changed the documents in between; otherwise it returns
// domain.ErrTxConflict without writing. Errors returned by fn abort the
// transaction and are returned unchanged.
type LedgerStore interface {
	Transact(ctx context.Context, op LedgerOp, fn func(LedgerState) (LedgerWrite, error)) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
	Entries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)
}

// RedemptionStore holds redemption request documents.
type RedemptionStore interface {
	CreateRedemption(ctx context.Context, req domain.RedemptionRequest) error
	GetRedemption(ctx context.Context, id string) (domain.RedemptionRequest, error)
	// TransitionRedemption replaces the document if its stored status still equals
	// from, else it returns domain.ErrRedemptionProcessed.
	TransitionRedemption(ctx context.Context, req domain.RedemptionRequest, from domain.RedemptionStatus) error
	ListRedemptions(ctx context.Context, status domain.RedemptionStatus) ([]domain.RedemptionRequest, error)
}

// ProgressStore persists cumulative XP and solved counters.
type ProgressStore interface {
	LoadProgress(ctx context.Context, userID string) (domain.PlayerProgress, error)
	UpdateProgress(ctx context.Context, userID string, fn func(*domain.PlayerProgress)) (domain.PlayerProgress, error)
}

// ActivityStore keeps per-day activity counts keyed by domain.DayLayout.
type ActivityStore interface {
	RecordActivity(ctx context.Context, userID, day string) error
	DailyCounts(ctx context.Context, userID string) (map[string]int, error)
}

// SessionRepository abstracts where live play sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *PlaySession)
	Get(sessionID string) (*PlaySession, bool)
	// Touch marks the session as still in play.
	Touch(sessionID string)
	Delete(sessionID string)
}

// EventPublisher announces committed economy changes to other services.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
