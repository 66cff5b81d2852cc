package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ExposureStore keeps one JSON exposure record per user under exposure:{user}.
// Last write wins.
type ExposureStore struct {
	client *redis.Client
}

func NewExposureStore(client *redis.Client) *ExposureStore {
	return &ExposureStore{client: client}
}

func (s *ExposureStore) LoadExposure(ctx context.Context, userID string) (domain.ExposureRecord, error) {
	data, err := s.client.Get(ctx, "exposure:"+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ExposureRecord{}, nil
	}
	if err != nil {
		return domain.ExposureRecord{}, err
	}
	var rec domain.ExposureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.ExposureRecord{}, fmt.Errorf("decode exposure: %w", err)
	}
	return rec, nil
}

func (s *ExposureStore) SaveExposure(ctx context.Context, userID string, rec domain.ExposureRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "exposure:"+userID, data, 0).Err()
}

const progressTxAttempts = 10

// ProgressStore keeps player progress as JSON under progress:{user}.
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) LoadProgress(ctx context.Context, userID string) (domain.PlayerProgress, error) {
	return readProgress(ctx, s.client, userID)
}

// UpdateProgress applies fn under WATCH, retrying a bounded number of times on contention.
func (s *ProgressStore) UpdateProgress(ctx context.Context, userID string, fn func(*domain.PlayerProgress)) (domain.PlayerProgress, error) {
	key := progressKey(userID)
	var updated domain.PlayerProgress
	txf := func(tx *redis.Tx) error {
		p, err := readProgress(ctx, tx, userID)
		if err != nil {
			return err
		}
		fn(&p)
		p.Sanitize()
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = p
		}
		return err
	}

	for i := 0; i < progressTxAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return domain.PlayerProgress{}, err
		}
	}
	return domain.PlayerProgress{}, fmt.Errorf("update progress for %s: %w", userID, domain.ErrTxConflict)
}

func progressKey(userID string) string {
	return "progress:" + userID
}

func readProgress(ctx context.Context, c getter, userID string) (domain.PlayerProgress, error) {
	data, err := c.Get(ctx, progressKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PlayerProgress{UserID: userID}, nil
	}
	if err != nil {
		return domain.PlayerProgress{}, err
	}
	var p domain.PlayerProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("decode progress: %w", err)
	}
	p.UserID = userID
	p.Sanitize()
	return p, nil
}

// ActivityStore counts sessions per day in a hash: HINCRBY activity:{user} {day} 1.
type ActivityStore struct {
	client *redis.Client
}

func NewActivityStore(client *redis.Client) *ActivityStore {
	return &ActivityStore{client: client}
}

func (s *ActivityStore) RecordActivity(ctx context.Context, userID, day string) error {
	return s.client.HIncrBy(ctx, "activity:"+userID, day, 1).Err()
}

func (s *ActivityStore) DailyCounts(ctx context.Context, userID string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, "activity:"+userID).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for day, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		out[day] = n
	}
	return out, nil
}
