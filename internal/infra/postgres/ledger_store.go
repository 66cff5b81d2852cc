package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/uptrace/bun"
)

type accountModel struct {
	bun.BaseModel `bun:"table:ledger_accounts"`

	UserID  string `bun:"user_id,pk"`
	Balance int64  `bun:"balance,notnull"`
	Version int64  `bun:"version,notnull"`
}

type entryModel struct {
	bun.BaseModel `bun:"table:ledger_entries"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id,notnull"`
	Amount      int64     `bun:"amount,notnull"`
	Kind        string    `bun:"kind,notnull"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description,notnull"`
	Status      string    `bun:"status,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

type redemptionModel struct {
	bun.BaseModel `bun:"table:redemption_requests"`

	ID          string     `bun:"id,pk"`
	UserID      string     `bun:"user_id,notnull"`
	RewardID    string     `bun:"reward_id,notnull"`
	Price       int64      `bun:"price,notnull"`
	Status      string     `bun:"status,notnull"`
	Code        string     `bun:"code,notnull"`
	Notes       string     `bun:"notes,notnull"`
	RequestedAt time.Time  `bun:"requested_at,notnull"`
	ProcessedAt *time.Time `bun:"processed_at"`
	Version     int64      `bun:"version,notnull"`
}

func (m redemptionModel) toDomain() domain.RedemptionRequest {
	return domain.RedemptionRequest{
		ID:          m.ID,
		UserID:      m.UserID,
		RewardID:    m.RewardID,
		Price:       m.Price,
		Status:      domain.RedemptionStatus(m.Status),
		RequestedAt: m.RequestedAt,
		ProcessedAt: m.ProcessedAt,
		Code:        m.Code,
		Notes:       m.Notes,
	}
}

// LedgerStore implements app.LedgerStore and app.RedemptionStore with bun.
// Each account row carries a version; a transaction commits only if the
// version it read is still current.
type LedgerStore struct {
	db *bun.DB
}

func NewLedgerStore(db *bun.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Transact(ctx context.Context, op app.LedgerOp, fn func(app.LedgerState) (app.LedgerWrite, error)) (int64, error) {
	var (
		balance int64
		fnErr   error
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		acc := accountModel{UserID: op.UserID}
		if _, err := tx.NewInsert().Model(&acc).On("CONFLICT (user_id) DO NOTHING").Exec(ctx); err != nil {
			return err
		}
		if err := tx.NewSelect().Model(&acc).WherePK().Scan(ctx); err != nil {
			return err
		}
		current := acc.Balance
		if current < 0 {
			current = 0
		}

		state := app.LedgerState{Balance: current}
		var red redemptionModel
		if op.RedemptionID != "" {
			err := tx.NewSelect().Model(&red).Where("id = ?", op.RedemptionID).Scan(ctx)
			switch {
			case err == nil:
				req := red.toDomain()
				state.Redemption = &req
			case !errors.Is(err, sql.ErrNoRows):
				return err
			}
		}

		write, err := fn(state)
		if err != nil {
			fnErr = err
			return err
		}

		next := current + write.Entry.Amount
		res, err := tx.NewUpdate().Model((*accountModel)(nil)).
			Set("balance = ?", next).
			Set("version = version + 1").
			Where("user_id = ?", op.UserID).
			Where("version = ?", acc.Version).
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := checkRowsAffected(res); err != nil {
			return err
		}

		e := write.Entry
		entry := entryModel{
			ID:          e.ID,
			UserID:      op.UserID,
			Amount:      e.Amount,
			Kind:        string(e.Kind),
			Title:       e.Title,
			Description: e.Description,
			Status:      e.Status,
			CreatedAt:   e.CreatedAt,
		}
		if _, err := tx.NewInsert().Model(&entry).Exec(ctx); err != nil {
			return err
		}

		if r := write.Redemption; r != nil {
			res, err := tx.NewUpdate().Model((*redemptionModel)(nil)).
				Set("status = ?", string(r.Status)).
				Set("code = ?", r.Code).
				Set("notes = ?", r.Notes).
				Set("processed_at = ?", r.ProcessedAt).
				Set("version = version + 1").
				Where("id = ?", r.ID).
				Where("version = ?", red.Version).
				Exec(ctx)
			if err != nil {
				return err
			}
			if err := checkRowsAffected(res); err != nil {
				return err
			}
		}
		balance = next
		return nil
	})
	switch {
	case err == nil:
		return balance, nil
	case fnErr != nil:
		return 0, fnErr
	default:
		return 0, mapError(err)
	}
}

func (s *LedgerStore) Balance(ctx context.Context, userID string) (int64, error) {
	var acc accountModel
	err := s.db.NewSelect().Model(&acc).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", mapError(err))
	}
	if acc.Balance < 0 {
		return 0, nil
	}
	return acc.Balance, nil
}

func (s *LedgerStore) Entries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	var rows []entryModel
	q := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).OrderExpr("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("read entries: %w", mapError(err))
	}
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.LedgerEntry{
			ID:          r.ID,
			UserID:      r.UserID,
			Amount:      r.Amount,
			Kind:        domain.EntryKind(r.Kind),
			Title:       r.Title,
			Description: r.Description,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

func (s *LedgerStore) CreateRedemption(ctx context.Context, req domain.RedemptionRequest) error {
	m := redemptionModel{
		ID:          req.ID,
		UserID:      req.UserID,
		RewardID:    req.RewardID,
		Price:       req.Price,
		Status:      string(req.Status),
		Code:        req.Code,
		Notes:       req.Notes,
		RequestedAt: req.RequestedAt,
		ProcessedAt: req.ProcessedAt,
	}
	if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *LedgerStore) GetRedemption(ctx context.Context, id string) (domain.RedemptionRequest, error) {
	var m redemptionModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RedemptionRequest{}, domain.ErrRedemptionNotFound
	}
	if err != nil {
		return domain.RedemptionRequest{}, mapError(err)
	}
	return m.toDomain(), nil
}

func (s *LedgerStore) TransitionRedemption(ctx context.Context, req domain.RedemptionRequest, from domain.RedemptionStatus) error {
	res, err := s.db.NewUpdate().Model((*redemptionModel)(nil)).
		Set("status = ?", string(req.Status)).
		Set("code = ?", req.Code).
		Set("notes = ?", req.Notes).
		Set("processed_at = ?", req.ProcessedAt).
		Set("version = version + 1").
		Where("id = ?", req.ID).
		Where("status = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	if err := checkRowsAffected(res); err != nil {
		if _, getErr := s.GetRedemption(ctx, req.ID); getErr != nil {
			return getErr
		}
		return domain.ErrRedemptionProcessed
	}
	return nil
}

func (s *LedgerStore) ListRedemptions(ctx context.Context, status domain.RedemptionStatus) ([]domain.RedemptionRequest, error) {
	var rows []redemptionModel
	if err := s.db.NewSelect().Model(&rows).Where("status = ?", string(status)).Order("requested_at ASC").Scan(ctx); err != nil {
		return nil, mapError(err)
	}
	out := make([]domain.RedemptionRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
