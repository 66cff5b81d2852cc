package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LedgerStore implements app.LedgerStore and app.RedemptionStore on Redis.
//
// Layout:
//
//	ledger:{user}:balance   integer balance
//	ledger:{user}:entries   list of JSON entries, newest first
//	redemption:{id}         JSON request
//	redemptions:{status}    set of request IDs
//
// Transactions WATCH the balance key (and the redemption key when one is
// named) so concurrent writers for the same user abort with
// domain.ErrTxConflict instead of overwriting each other.
type LedgerStore struct {
	client *redis.Client
}

func NewLedgerStore(client *redis.Client) *LedgerStore {
	return &LedgerStore{client: client}
}

func (s *LedgerStore) Transact(ctx context.Context, op app.LedgerOp, fn func(app.LedgerState) (app.LedgerWrite, error)) (int64, error) {
	balanceKey := s.balanceKey(op.UserID)
	keys := []string{balanceKey}
	if op.RedemptionID != "" {
		keys = append(keys, s.redemptionKey(op.RedemptionID))
	}

	var (
		balance int64
		fnErr   error
	)
	txf := func(tx *redis.Tx) error {
		current, err := readBalance(ctx, tx, balanceKey)
		if err != nil {
			return err
		}
		state := app.LedgerState{Balance: current}
		if op.RedemptionID != "" {
			req, err := readRedemption(ctx, tx, s.redemptionKey(op.RedemptionID))
			switch {
			case err == nil:
				state.Redemption = &req
			case !errors.Is(err, domain.ErrRedemptionNotFound):
				return err
			}
		}

		write, err := fn(state)
		if err != nil {
			fnErr = err
			return err
		}
		entry, err := json.Marshal(write.Entry)
		if err != nil {
			return err
		}
		var redemption []byte
		if write.Redemption != nil {
			if redemption, err = json.Marshal(write.Redemption); err != nil {
				return err
			}
		}

		next := current + write.Entry.Amount
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, balanceKey, next, 0)
			pipe.LPush(ctx, s.entriesKey(op.UserID), entry)
			if write.Redemption != nil {
				pipe.Set(ctx, s.redemptionKey(write.Redemption.ID), redemption, 0)
				if state.Redemption != nil && state.Redemption.Status != write.Redemption.Status {
					pipe.SMove(ctx, s.statusKey(state.Redemption.Status), s.statusKey(write.Redemption.Status), write.Redemption.ID)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		balance = next
		return nil
	}

	err := s.client.Watch(ctx, txf, keys...)
	switch {
	case err == nil:
		return balance, nil
	case fnErr != nil:
		return 0, fnErr
	case errors.Is(err, redis.TxFailedErr):
		return 0, domain.ErrTxConflict
	default:
		return 0, fmt.Errorf("ledger tx for %s: %w", op.UserID, err)
	}
}

func (s *LedgerStore) Balance(ctx context.Context, userID string) (int64, error) {
	return readBalance(ctx, s.client, s.balanceKey(userID))
}

func (s *LedgerStore) Entries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := s.client.LRange(ctx, s.entriesKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read entries for %s: %w", userID, err)
	}
	out := make([]domain.LedgerEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.LedgerEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode entry for %s: %w", userID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *LedgerStore) CreateRedemption(ctx context.Context, req domain.RedemptionRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.redemptionKey(req.ID), data, 0)
		pipe.SAdd(ctx, s.statusKey(req.Status), req.ID)
		return nil
	})
	return err
}

func (s *LedgerStore) GetRedemption(ctx context.Context, id string) (domain.RedemptionRequest, error) {
	return readRedemption(ctx, s.client, s.redemptionKey(id))
}

func (s *LedgerStore) TransitionRedemption(ctx context.Context, req domain.RedemptionRequest, from domain.RedemptionStatus) error {
	key := s.redemptionKey(req.ID)
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readRedemption(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur.Status != from {
			return domain.ErrRedemptionProcessed
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SMove(ctx, s.statusKey(from), s.statusKey(req.Status), req.ID)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// someone else moved it first
		return domain.ErrRedemptionProcessed
	}
	return err
}

func (s *LedgerStore) ListRedemptions(ctx context.Context, status domain.RedemptionStatus) ([]domain.RedemptionRequest, error) {
	ids, err := s.client.SMembers(ctx, s.statusKey(status)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.redemptionKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.RedemptionRequest, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var req domain.RedemptionRequest
		if err := json.Unmarshal([]byte(str), &req); err != nil {
			return nil, err
		}
		if req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (s *LedgerStore) balanceKey(userID string) string {
	return "ledger:" + userID + ":balance"
}

func (s *LedgerStore) entriesKey(userID string) string {
	return "ledger:" + userID + ":entries"
}

func (s *LedgerStore) redemptionKey(id string) string {
	return "redemption:" + id
}

func (s *LedgerStore) statusKey(status domain.RedemptionStatus) string {
	return "redemptions:" + string(status)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readBalance(ctx context.Context, c getter, key string) (int64, error) {
	b, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	if b < 0 {
		b = 0
	}
	return b, nil
}

func readRedemption(ctx context.Context, c getter, key string) (domain.RedemptionRequest, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RedemptionRequest{}, domain.ErrRedemptionNotFound
	}
	if err != nil {
		return domain.RedemptionRequest{}, err
	}
	var req domain.RedemptionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.RedemptionRequest{}, fmt.Errorf("decode redemption: %w", err)
	}
	return req, nil
}
