package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/config"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/event"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/exposure"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/infra/memory"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/infra/postgres"
	redisinfra "github.com/digitarmedia-techteam/MintX-sub000/internal/infra/redis"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/infra/sqlite"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/metrics"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/scheduler"
	transport "github.com/digitarmedia-techteam/MintX-sub000/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the economy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// application is the wired service graph plus everything that must be closed.
type application struct {
	handler http.Handler
	ledger  *app.LedgerService
	quiz    *app.QuizService
	players *app.PlayerService
	closers []func() error
}

func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp selects adapters by config: Redis when an address is set, Postgres
// for questions and the ledger when a URL is set, SQLite for exposure when a
// path is set, memory otherwise.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg *prometheus.Registry) (_ *application, err error) {
	a := &application{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	m := metrics.New(reg)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	var (
		loader      memory.QuestionLoader
		ledgerStore app.LedgerStore
		redemptions app.RedemptionStore
	)
	if cfg.Postgres.URL != "" {
		db := openBun(cfg.Postgres.URL)
		a.closers = append(a.closers, db.Close)
		if err := migrateDB(ctx, db, logger); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		loader = postgres.NewQuestionLoader(pool, cfg.Questions.PerCategoryCap)
		store := postgres.NewLedgerStore(db)
		ledgerStore, redemptions = store, store
	} else {
		questions, err := sampleQuestions()
		if err != nil {
			return nil, err
		}
		loader = memory.NewStaticQuestionLoader(questions, cfg.Questions.PerCategoryCap)
	}

	cacheTTL := config.Duration(cfg.Questions.CacheTTL, 10*time.Minute)
	var (
		questions app.QuestionRepository
		exposures exposure.Store
		progress  app.ProgressStore
		activity  app.ActivityStore
		sessions  app.SessionRepository
	)
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, cacheTTL)
		exposures = redisinfra.NewExposureStore(redisClient)
		progress = redisinfra.NewProgressStore(redisClient)
		activity = redisinfra.NewActivityStore(redisClient)
		sessions = redisinfra.NewSessionStore(redisClient, config.Duration(cfg.Redis.TTL, 10*time.Minute), logger)
		if ledgerStore == nil {
			store := redisinfra.NewLedgerStore(redisClient)
			ledgerStore, redemptions = store, store
		}
	} else {
		questions = memory.NewQuestionRepository(loader, cacheTTL)
		exposures = memory.NewExposureStore()
		progress = memory.NewProgressStore()
		activity = memory.NewActivityStore()
		sessions = memory.NewSessionStore()
		if ledgerStore == nil {
			store := memory.NewLedgerStore()
			ledgerStore, redemptions = store, store
		}
	}

	if cfg.SQLite.Path != "" {
		local, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, local.Close)
		exposures = local
	}

	publisher, err := event.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	a.ledger = app.NewLedgerService(ledgerStore, redemptions,
		app.WithRetry(app.RetryConfig{
			MaxRetries:     uint64(cfg.Ledger.MaxRetries),
			InitialBackoff: config.Duration(cfg.Ledger.InitialBackoff, 10*time.Millisecond),
			MaxBackoff:     config.Duration(cfg.Ledger.MaxBackoff, 250*time.Millisecond),
		}),
		app.WithLedgerLogger(logger),
		app.WithLedgerMetrics(m),
		app.WithLedgerEvents(publisher))

	a.quiz = app.NewQuizService(app.QuizDeps{
		Questions: questions,
		Exposures: exposures,
		Progress:  progress,
		Activity:  activity,
		Sessions:  sessions,
		Ledger:    a.ledger,
		Scheduler: scheduler.New(scheduler.WithLogger(logger), scheduler.WithBackfillHook(m.Backfilled)),
		Events:    publisher,
		Metrics:   m,
		Logger:    logger,
	}, app.QuizConfig{
		FetchTimeout:       config.Duration(cfg.Questions.FetchTimeout, 5*time.Second),
		FallbackCategories: cfg.Quiz.FallbackCategories,
	})
	a.players = app.NewPlayerService(progress, activity, nil)

	ws := transport.NewWSHandler(a.quiz, transport.WSConfig{
		QuestionTimeout: config.Duration(cfg.Quiz.QuestionTimeout, 20*time.Second),
		ResumeGrace:     config.Duration(cfg.Quiz.ResumeGrace, 30*time.Second),
	}, logger)
	a.handler = transport.NewRouter(transport.RouterDeps{
		Ledger:   a.ledger,
		Players:  a.players,
		Quiz:     a.quiz,
		WS:       ws,
		Gatherer: reg,
		Logger:   logger,
	})
	return a, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Server.LogLevel, os.Stdout)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := buildApp(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     a.handler,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting economy service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
