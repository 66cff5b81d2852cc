package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/exposure"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/metrics"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/progression"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/scheduler"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/scoring"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EventSessionCompleted is published after a session has been settled.
const EventSessionCompleted = "session.completed"

// QuizConfig tunes session building.
type QuizConfig struct {
	FetchTimeout time.Duration
	// FallbackCategories is the broader fetch used when the selected
	// categories have nothing left to show.
	FallbackCategories []string
}

// QuizDeps wires the collaborators of QuizService.
type QuizDeps struct {
	Questions QuestionRepository
	Exposures exposure.Store
	Progress  ProgressStore
	Activity  ActivityStore
	Sessions  SessionRepository
	Ledger    *LedgerService
	Scheduler *scheduler.Scheduler
	Events    EventPublisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	QuizDeps
	cfg       QuizConfig
	saveLocks userLocks
}

func NewQuizService(deps QuizDeps, cfg QuizConfig) *QuizService {
	if deps.Scheduler == nil {
		deps.Scheduler = scheduler.New(scheduler.WithBackfillHook(deps.Metrics.Backfilled))
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	return &QuizService{QuizDeps: deps, cfg: cfg}
}

// SessionResult is returned once a session has been settled.
type SessionResult struct {
	SessionID   string             `json:"sessionId"`
	Summary     scoring.Summary    `json:"summary"`
	Settlement  scoring.Settlement `json:"settlement"`
	Balance     int64              `json:"balance"`
	XP          int64              `json:"xp"`
	Progression progression.State  `json:"progression"`
	// LedgerPending is set when the ledger step failed transiently and the
	// delta can still be booked through Resettle.
	LedgerPending bool `json:"ledgerPending,omitempty"`
}

// StartSession builds a new session for the user from the given categories.
// domain.ErrNoQuestionsAvailable is returned only after the fallback fetch also
// came back empty; a session is never silently empty.
func (s *QuizService) StartSession(ctx context.Context, userID string, categories []string) (*PlaySession, error) {
	progress, err := s.Progress.LoadProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	level := progression.LevelFor(progress.XP)
	size := progression.SessionSizeFor(level)

	tracker, err := exposure.Load(ctx, s.Exposures, userID)
	if err != nil {
		return nil, err
	}

	categories = normalizeCategories(categories)
	res, err := s.selectFrom(ctx, categories, size, tracker)
	if errors.Is(err, domain.ErrNoQuestionsAvailable) && len(s.cfg.FallbackCategories) > 0 {
		s.Logger.Info("selected categories exhausted, using fallback fetch",
			"user_id", userID,
			"categories", categories,
			"fallback", s.cfg.FallbackCategories)
		categories = normalizeCategories(s.cfg.FallbackCategories)
		res, err = s.selectFrom(ctx, categories, size, tracker)
	}
	if err != nil {
		return nil, err
	}

	session := newPlaySession(uuid.NewString(), userID, level, categories, res.Questions, tracker, s.Now())
	s.Sessions.Put(session)
	s.Metrics.SessionStarted()
	s.Logger.Debug("session started",
		"session_id", session.ID,
		"user_id", userID,
		"level", level,
		"size", session.Len(),
		"candidates", res.Candidates)
	return session, nil
}

func (s *QuizService) selectFrom(ctx context.Context, categories []string, size int, tracker *exposure.Tracker) (scheduler.Result, error) {
	if len(categories) == 0 {
		return scheduler.Result{}, domain.ErrNoQuestionsAvailable
	}
	pool, err := s.fetchPool(ctx, categories)
	if err != nil {
		return scheduler.Result{}, err
	}
	return s.Scheduler.Select(pool, size, tracker)
}

// fetchPool loads all categories concurrently under the fetch timeout and
// merges them without duplicate IDs.
func (s *QuizService) fetchPool(ctx context.Context, categories []string) ([]domain.Question, error) {
	started := time.Now()
	defer func() { s.Metrics.ObserveQuestionFetch(time.Since(started)) }()

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	results := make([][]domain.Question, len(categories))
	g, gctx := errgroup.WithContext(fetchCtx)
	for i, category := range categories {
		i, category := i, category
		g.Go(func() error {
			qs, err := s.Questions.Questions(gctx, category)
			if errors.Is(err, domain.ErrCategoryNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch category %s: %w", category, err)
			}
			results[i] = qs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", domain.ErrQuestionFetchTimeout, s.cfg.FetchTimeout)
		}
		return nil, err
	}

	seen := make(map[string]struct{})
	var pool []domain.Question
	for _, qs := range results {
		for _, q := range qs {
			if _, dup := seen[q.ID]; dup {
				continue
			}
			seen[q.ID] = struct{}{}
			pool = append(pool, q)
		}
	}
	return pool, nil
}

// Session returns the live session with id owned by userID.
func (s *QuizService) Session(sessionID, userID string) (*PlaySession, error) {
	session, ok := s.Sessions.Get(sessionID)
	if !ok || session.UserID != userID || session.Finished() {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Touch marks the session as still in play so its liveness marker does not lapse.
func (s *QuizService) Touch(session *PlaySession) {
	s.Sessions.Touch(session.ID)
}

// Complete settles the session: ledger delta, XP and solved counters, exposure
// state and the activity log. Each step is attempted independently; failures
// are logged and joined into the returned error while the result still
// reflects what was computed. A ledger step that failed with
// domain.ErrTransientStore stays retryable: the session is kept and a later
// Complete or Resettle books the same delta once.
func (s *QuizService) Complete(ctx context.Context, session *PlaySession) (SessionResult, error) {
	summary, ok := session.finish()
	if !ok {
		return s.retryLedger(ctx, session)
	}

	settlement := scoring.Settle(summary)
	result := SessionResult{SessionID: session.ID, Summary: summary, Settlement: settlement}
	var errs []error
	fail := func(step string, err error) {
		s.Metrics.PersistFailure(step)
		s.Logger.Error("session persistence step failed",
			"step", step,
			"session_id", session.ID,
			"user_id", session.UserID,
			"error", err)
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
	}

	balance, err := s.applyLedger(ctx, session.UserID, result)
	if err != nil {
		fail("ledger", err)
		result.LedgerPending = errors.Is(err, domain.ErrTransientStore)
	}
	result.Balance = balance

	progress, err := s.Progress.UpdateProgress(ctx, session.UserID, func(p *domain.PlayerProgress) {
		p.XP = progression.ApplyXP(p.XP, settlement.XPDelta)
		for d, n := range settlement.Solved {
			p.AddSolved(d, n)
		}
	})
	if err != nil {
		fail("progress", err)
	}
	result.XP = progress.XP
	result.Progression = progression.For(progress.XP)

	if err := s.saveExposure(ctx, session); err != nil {
		fail("exposure", err)
	}

	day := s.Now().Format(domain.DayLayout)
	if err := s.Activity.RecordActivity(ctx, session.UserID, day); err != nil {
		fail("activity", err)
	}

	if result.LedgerPending {
		session.holdUnsettled(result)
	} else {
		s.Sessions.Delete(session.ID)
	}

	if err := s.Events.Publish(ctx, EventSessionCompleted, struct {
		UserID string `json:"userId"`
		SessionResult
	}{session.UserID, result}); err != nil {
		s.Logger.Error("publish event failed", "routing_key", EventSessionCompleted, "error", err)
	}

	s.Metrics.SessionCompleted()
	s.Logger.Info("session completed",
		"session_id", session.ID,
		"user_id", session.UserID,
		"correct", summary.Correct,
		"wrong", summary.Wrong,
		"skipped", summary.Skipped,
		"ledger_delta", settlement.LedgerDelta,
		"ledger_pending", result.LedgerPending,
		"xp", result.XP)
	return result, errors.Join(errs...)
}

// Resettle retries the ledger step of a completed session whose delta could
// not be booked. It fails with domain.ErrNothingToSettle once the delta is in.
func (s *QuizService) Resettle(ctx context.Context, sessionID, userID string) (SessionResult, error) {
	session, ok := s.Sessions.Get(sessionID)
	if !ok || session.UserID != userID {
		return SessionResult{}, domain.ErrSessionNotFound
	}
	if !session.Finished() {
		return SessionResult{}, domain.ErrNothingToSettle
	}
	res, err := s.retryLedger(ctx, session)
	if errors.Is(err, domain.ErrSessionCompleted) {
		return SessionResult{}, domain.ErrNothingToSettle
	}
	return res, err
}

// retryLedger books the held delta of a finished session. The held result is
// taken under the session lock, so concurrent retries book it at most once.
func (s *QuizService) retryLedger(ctx context.Context, session *PlaySession) (SessionResult, error) {
	result, ok := session.takeUnsettled()
	if !ok {
		return SessionResult{}, domain.ErrSessionCompleted
	}
	balance, err := s.applyLedger(ctx, session.UserID, result)
	if err != nil {
		s.Metrics.PersistFailure("ledger")
		if errors.Is(err, domain.ErrTransientStore) {
			session.holdUnsettled(result)
		} else {
			s.Sessions.Delete(session.ID)
			result.LedgerPending = false
		}
		return result, fmt.Errorf("ledger: %w", err)
	}
	s.Sessions.Delete(session.ID)
	result.Balance = balance
	result.LedgerPending = false
	s.Logger.Info("session ledger settled on retry",
		"session_id", session.ID,
		"user_id", session.UserID,
		"ledger_delta", result.Settlement.LedgerDelta)
	return result, nil
}

func (s *QuizService) applyLedger(ctx context.Context, userID string, result SessionResult) (int64, error) {
	title := "Quiz reward"
	if result.Settlement.LedgerDelta < 0 {
		title = "Quiz penalty"
	}
	desc := fmt.Sprintf("%d correct, %d wrong", result.Summary.Correct, result.Summary.Wrong)
	return s.Ledger.ApplySessionDelta(ctx, userID, result.Settlement.LedgerDelta, title, desc)
}

// saveExposure merges the session's exposure state into the stored record.
// Saves of one user never interleave inside this process.
func (s *QuizService) saveExposure(ctx context.Context, session *PlaySession) error {
	unlock := s.saveLocks.lock(session.UserID)
	defer unlock()
	return session.tracker.Save(ctx)
}

// Abandon discards a session without settling it. Questions already shown
// still count towards the attempt counter, so the exposure state is saved.
func (s *QuizService) Abandon(ctx context.Context, session *PlaySession) error {
	if _, ok := session.finish(); !ok {
		return nil
	}
	return s.discard(ctx, session)
}

// AbandonIdle abandons the session only if no connection attached since the
// Detach that returned seq. It reports whether the session was abandoned.
func (s *QuizService) AbandonIdle(ctx context.Context, session *PlaySession, seq uint64) (bool, error) {
	if !session.finishIfIdle(seq) {
		return false, nil
	}
	return true, s.discard(ctx, session)
}

func (s *QuizService) discard(ctx context.Context, session *PlaySession) error {
	s.Sessions.Delete(session.ID)
	if err := s.saveExposure(ctx, session); err != nil {
		s.Metrics.PersistFailure("exposure")
		return err
	}
	return nil
}

func normalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
