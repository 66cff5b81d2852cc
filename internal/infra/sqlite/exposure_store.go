// Package sqlite keeps device-local exposure state in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	_ "modernc.org/sqlite"
)

// migrations is applied in order; each string is a single statement.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS exposure_records (
		user_id    TEXT PRIMARY KEY,
		record     TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
}

// ExposureStore stores one JSON exposure record per user. Last write wins.
type ExposureStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*ExposureStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single writer avoids SQLITE_BUSY on the shared file
	db.SetMaxOpenConns(1)
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return &ExposureStore{db: db}, nil
}

func (s *ExposureStore) Close() error {
	return s.db.Close()
}

func (s *ExposureStore) LoadExposure(ctx context.Context, userID string) (domain.ExposureRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM exposure_records WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExposureRecord{}, nil
	}
	if err != nil {
		return domain.ExposureRecord{}, fmt.Errorf("load exposure: %w", err)
	}
	var rec domain.ExposureRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.ExposureRecord{}, fmt.Errorf("decode exposure: %w", err)
	}
	return rec, nil
}

func (s *ExposureStore) SaveExposure(ctx context.Context, userID string, rec domain.ExposureRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exposure_records (user_id, record, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		userID, string(data))
	if err != nil {
		return fmt.Errorf("save exposure: %w", err)
	}
	return nil
}
