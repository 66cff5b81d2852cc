package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads question JSONB from Postgres, a random sample of at
// most limit rows per category.
type QuestionLoader struct {
	pool  *pgxpool.Pool
	limit int
}

func NewQuestionLoader(pool *pgxpool.Pool, limit int) *QuestionLoader {
	if limit <= 0 {
		limit = 200
	}
	return &QuestionLoader{pool: pool, limit: limit}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, category string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT data FROM questions WHERE category=$1 ORDER BY random() LIMIT $2`,
		category, l.limit)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(out) == 0 {
		return nil, domain.ErrCategoryNotFound
	}
	return out, nil
}

// UpsertQuestions stores questions, replacing existing rows with the same ID.
func (l *QuestionLoader) UpsertQuestions(ctx context.Context, questions []domain.Question) error {
	batch := &pgx.Batch{}
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		batch.Queue(`INSERT INTO questions (id, category, difficulty, data) VALUES ($1, $2, $3, $4::jsonb)
			ON CONFLICT (id) DO UPDATE SET category=EXCLUDED.category, difficulty=EXCLUDED.difficulty, data=EXCLUDED.data`,
			q.ID, q.Category, string(q.Difficulty), string(data))
	}
	br := l.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range questions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert questions: %w", err)
		}
	}
	return nil
}
