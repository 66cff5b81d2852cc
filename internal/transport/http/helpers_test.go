package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/infra/memory"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

type testEnv struct {
	server  *httptest.Server
	quiz    *app.QuizService
	ledger  *app.LedgerService
	players *app.PlayerService
}

func newTestEnv(t *testing.T, questions []domain.Question, wsCfg WSConfig) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store := memory.NewLedgerStore()
	ledger := app.NewLedgerService(store, store, app.WithLedgerLogger(logger), app.WithLedgerMetrics(m))
	progress := memory.NewProgressStore()
	activity := memory.NewActivityStore()
	quiz := app.NewQuizService(app.QuizDeps{
		Questions: memory.NewQuestionRepository(memory.NewStaticQuestionLoader(questions, 0), time.Minute),
		Exposures: memory.NewExposureStore(),
		Progress:  progress,
		Activity:  activity,
		Sessions:  memory.NewSessionStore(),
		Ledger:    ledger,
		Metrics:   m,
		Logger:    logger,
	}, app.QuizConfig{})
	players := app.NewPlayerService(progress, activity, nil)

	server := httptest.NewServer(NewRouter(RouterDeps{
		Ledger:   ledger,
		Players:  players,
		Quiz:     quiz,
		WS:       NewWSHandler(quiz, wsCfg, logger),
		Gatherer: reg,
		Logger:   logger,
	}))
	t.Cleanup(server.Close)
	return &testEnv{server: server, quiz: quiz, ledger: ledger, players: players}
}

func (e *testEnv) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?" + query
}

// mathQuestions returns one question per difficulty; option "ok" is correct.
func mathQuestions() []domain.Question {
	var out []domain.Question
	for i, d := range domain.Difficulties {
		out = append(out, domain.Question{
			ID:         fmt.Sprintf("math-%d", i),
			Category:   "math",
			Difficulty: d,
			Prompt:     fmt.Sprintf("%d + %d?", i, i),
			Options: []domain.Option{
				{ID: "ok", Text: fmt.Sprint(i + i), Correct: true},
				{ID: "no", Text: "7"},
			},
		})
	}
	return out
}

type wsMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) wsMessage {
	t.Helper()
	var msg wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg
}

func send(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func number(t *testing.T, v any) int {
	t.Helper()
	f, ok := v.(float64)
	if !ok {
		t.Fatalf("expected number, got %T (%v)", v, v)
	}
	return int(f)
}
