// Package metrics holds the Prometheus instruments of the economy service.
// All methods are nil-safe so components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ledgerCommits      *prometheus.CounterVec
	ledgerConflicts    prometheus.Counter
	insufficientFunds  prometheus.Counter
	ledgerExhausted    prometheus.Counter
	redemptions        *prometheus.CounterVec
	sessionsStarted    prometheus.Counter
	sessionsCompleted  prometheus.Counter
	schedulerBackfills prometheus.Counter
	questionFetch      prometheus.Histogram
	persistFailures    *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ledgerCommits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "economy_ledger_commits_total",
			Help: "Committed ledger mutations by operation.",
		}, []string{"op"}),
		ledgerConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "economy_ledger_conflicts_total",
			Help: "Optimistic ledger transactions aborted by a concurrent writer.",
		}),
		insufficientFunds: f.NewCounter(prometheus.CounterOpts{
			Name: "economy_ledger_insufficient_funds_total",
			Help: "Debits rejected for insufficient balance.",
		}),
		ledgerExhausted: f.NewCounter(prometheus.CounterOpts{
			Name: "economy_ledger_retries_exhausted_total",
			Help: "Ledger operations that gave up after bounded retries.",
		}),
		redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "economy_redemptions_total",
			Help: "Redemption requests by resulting status.",
		}, []string{"status"}),
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "economy_sessions_started_total",
			Help: "Quiz sessions started.",
		}),
		sessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "economy_sessions_completed_total",
			Help: "Quiz sessions completed and settled.",
		}),
		schedulerBackfills: f.NewCounter(prometheus.CounterOpts{
			Name: "economy_scheduler_backfilled_questions_total",
			Help: "Questions added outside the difficulty quotas.",
		}),
		questionFetch: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "economy_question_fetch_seconds",
			Help:    "Latency of candidate pool fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		persistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "economy_result_persist_failures_total",
			Help: "Failed post-session persistence steps.",
		}, []string{"step"}),
	}
}

func (m *Metrics) LedgerCommit(op string) {
	if m == nil {
		return
	}
	m.ledgerCommits.WithLabelValues(op).Inc()
}

func (m *Metrics) LedgerConflict() {
	if m == nil {
		return
	}
	m.ledgerConflicts.Inc()
}

func (m *Metrics) InsufficientFunds() {
	if m == nil {
		return
	}
	m.insufficientFunds.Inc()
}

func (m *Metrics) LedgerRetriesExhausted() {
	if m == nil {
		return
	}
	m.ledgerExhausted.Inc()
}

func (m *Metrics) Redemption(status string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(status).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) SessionCompleted() {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc()
}

func (m *Metrics) Backfilled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.schedulerBackfills.Add(float64(n))
}

func (m *Metrics) ObserveQuestionFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.questionFetch.Observe(d.Seconds())
}

func (m *Metrics) PersistFailure(step string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(step).Inc()
}
