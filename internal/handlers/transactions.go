package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"cardms/internal/auth"
	"cardms/internal/middleware"
	"cardms/internal/money"
	"cardms/internal/services"
	"cardms/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type transferRequest struct {
	FromCardID string `json:"from_card_id"`
	ToCardID   string `json:"to_card_id"`
	Amount     string `json:"amount"`
}

type transferResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	FromCard      string `json:"from_card"`
	ToCard        string `json:"to_card"`
	Amount        string `json:"amount"`
}

// Transfer executes a card-to-card transfer. Business rule violations are
// not HTTP errors: the attempt is recorded as a FAILED transaction and
// returned with its failure reason.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.FromCardID == "" || req.ToCardID == "" {
		respondError(w, http.StatusBadRequest, "from_card_id and to_card_id are required")
		return
	}
	// Parse only; sign and balance checks belong to the transfer engine so
	// they produce FAILED rows instead of rejections.
	amount, err := money.Parse(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	outcome, err := h.transfers.Transfer(r.Context(), services.TransferRequest{
		FromCardID: req.FromCardID,
		ToCardID:   req.ToCardID,
		Amount:     amount,
		ActorID:    principal.UserID,
		ClientIP:   clientIP(r),
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transferResponse{
		TransactionID: outcome.TransactionID,
		Status:        string(outcome.Status),
		FailureReason: outcome.FailureReason,
		FromCard:      outcome.FromMasked,
		ToCard:        outcome.ToMasked,
		Amount:        money.Format(outcome.Amount),
	})
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	row, err := h.transfers.GetTransaction(r.Context(), chi.URLParam(r, "id"), principal)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, row)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit, offset := pagination(query.Get("page"), query.Get("limit"), 20)
	rows, err := h.transfers.ListUserTransactions(r.Context(), principal, limit, offset)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// WSBalances upgrades the connection and streams balance updates for the
// authenticated user's cards. Browsers cannot set headers on websocket
// dials, so the token may also arrive as a query parameter.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
