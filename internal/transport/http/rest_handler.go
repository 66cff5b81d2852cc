package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultEntriesLimit = 50

type restHandler struct {
	ledger  *app.LedgerService
	players *app.PlayerService
	quiz    *app.QuizService
	logger  *slog.Logger
}

type adjustmentRequest struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

type redemptionRequest struct {
	RewardID string `json:"rewardId" validate:"required"`
	Price    int64  `json:"price" validate:"gt=0"`
}

type approveRequest struct {
	Code string `json:"code" validate:"required"`
}

type rejectRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type balanceResponse struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

func (h *restHandler) balance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}

func (h *restHandler) entries(w http.ResponseWriter, r *http.Request) {
	limit := defaultEntriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	entries, err := h.ledger.Entries(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *restHandler) credit(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.ledger.Credit)
}

func (h *restHandler) debit(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.ledger.Debit)
}

func (h *restHandler) adjust(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID string, amount int64, title, desc string) (int64, error)) {
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "userID")
	balance, err := apply(r.Context(), userID, req.Amount, req.Title, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}

func (h *restHandler) progress(w http.ResponseWriter, r *http.Request) {
	view, err := h.players.Progress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *restHandler) activity(w http.ResponseWriter, r *http.Request) {
	view, err := h.players.Activity(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// resettle books the ledger delta of a session whose settlement hit a
// transient store failure.
func (h *restHandler) resettle(w http.ResponseWriter, r *http.Request) {
	result, err := h.quiz.Resettle(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *restHandler) requestRedemption(w http.ResponseWriter, r *http.Request) {
	var req redemptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.ledger.RequestRedemption(r.Context(), chi.URLParam(r, "userID"), req.RewardID, req.Price)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *restHandler) listRedemptions(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" && status != string(domain.RedemptionPending) {
		writeError(w, http.StatusBadRequest, "only status=pending can be listed")
		return
	}
	pending, err := h.ledger.PendingRedemptions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if pending == nil {
		pending = []domain.RedemptionRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"redemptions": pending})
}

func (h *restHandler) getRedemption(w http.ResponseWriter, r *http.Request) {
	req, err := h.ledger.GetRedemption(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *restHandler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !h.decode(w, r, &req) {
		return
	}
	approved, balance, err := h.ledger.ApproveRedemption(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"redemption": approved, "balance": balance})
}

func (h *restHandler) reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !h.decode(w, r, &req) {
		return
	}
	rejected, err := h.ledger.RejectRedemption(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rejected)
}

func (h *restHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *restHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
	}
	writeError(w, status, err.Error())
}
