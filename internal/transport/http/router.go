package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var validate = validator.New()

// RouterDeps wires the HTTP surface.
type RouterDeps struct {
	Ledger  *app.LedgerService
	Players *app.PlayerService
	Quiz    *app.QuizService
	WS      *WSHandler
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter returns the chi router with all routes mounted.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &restHandler{ledger: deps.Ledger, players: deps.Players, quiz: deps.Quiz, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.WS != nil {
		r.Get("/ws", deps.WS.ServeWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/balance", h.balance)
			r.Get("/ledger", h.entries)
			r.Post("/credits", h.credit)
			r.Post("/debits", h.debit)
			r.Get("/progress", h.progress)
			r.Get("/activity", h.activity)
			r.Post("/redemptions", h.requestRedemption)
			if deps.Quiz != nil {
				r.Post("/sessions/{sessionID}/settle", h.resettle)
			}
		})
		r.Route("/redemptions", func(r chi.Router) {
			r.Get("/", h.listRedemptions)
			r.Get("/{id}", h.getRedemption)
			r.Post("/{id}/approve", h.approve)
			r.Post("/{id}/reject", h.reject)
		})
	})
	return r
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": msg, "type": "error"},
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrRedemptionNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRedemptionProcessed), errors.Is(err, domain.ErrSessionBusy),
		errors.Is(err, domain.ErrSessionCompleted), errors.Is(err, domain.ErrNothingToSettle):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransientStore), errors.Is(err, domain.ErrNoQuestionsAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrQuestionFetchTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
