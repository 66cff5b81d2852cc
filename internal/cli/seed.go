package cli

import (
	"fmt"
	"os"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/config"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/infra/postgres"
	redisinfra "github.com/digitarmedia-techteam/MintX-sub000/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd writes the bundled sample catalog into the Postgres question
// store and drops the cached categories from Redis.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the sample question catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Server.LogLevel, os.Stdout)
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			db := openBun(cfg.Postgres.URL)
			defer db.Close()
			if err := migrateDB(ctx, db, logger); err != nil {
				return err
			}

			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			questions, err := sampleQuestions()
			if err != nil {
				return err
			}
			loader := postgres.NewQuestionLoader(pool, cfg.Questions.PerCategoryCap)
			if err := loader.UpsertQuestions(ctx, questions); err != nil {
				return err
			}

			categories := categoriesOf(questions)
			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer client.Close()
				cache := redisinfra.NewQuestionRepository(client, loader, 0)
				for _, c := range categories {
					if err := cache.Invalidate(ctx, c); err != nil {
						logger.Warn("invalidate cached category failed", "category", c, "error", err)
					}
				}
			}
			logger.Info("sample catalog seeded", "questions", len(questions), "categories", categories)
			return nil
		},
	}
}
