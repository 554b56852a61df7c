package handlers

import (
	"encoding/json"
	"net/http"

	"cardms/internal/middleware"
	"cardms/internal/money"
	"cardms/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createCardRequest struct {
	OwnerID        string `json:"owner_id"`
	ExpirationDate string `json:"expiration_date"`
	InitialBalance string `json:"initial_balance"`
}

func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	expiration, err := parseDate(req.ExpirationDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expiration_date")
		return
	}
	balance := decimal.Zero
	if req.InitialBalance != "" {
		balance, err = money.Parse(req.InitialBalance)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid initial_balance")
			return
		}
	}
	card, err := h.cards.CreateCard(r.Context(), services.CreateCardRequest{
		OwnerID:        req.OwnerID,
		ExpirationDate: expiration,
		InitialBalance: balance,
		ClientIP:       clientIP(r),
	}, principal)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, card)
}

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit, offset := pagination(query.Get("page"), query.Get("limit"), 20)
	cards, err := h.cards.ListOwnCards(r.Context(), principal, limit, offset)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cards)
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	card, err := h.cards.GetCard(r.Context(), chi.URLParam(r, "id"), principal)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

func (h *Handler) GetCardBalance(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	balance, err := h.cards.GetBalance(r.Context(), chi.URLParam(r, "id"), principal)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	card, err := h.cards.BlockCard(r.Context(), chi.URLParam(r, "id"), principal, clientIP(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

func (h *Handler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	card, err := h.cards.ActivateCard(r.Context(), chi.URLParam(r, "id"), principal, clientIP(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.cards.DeleteCard(r.Context(), chi.URLParam(r, "id"), principal, clientIP(r)); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) ListCardTransactions(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit, offset := pagination(query.Get("page"), query.Get("limit"), 20)
	rows, err := h.transfers.ListCardTransactions(r.Context(), chi.URLParam(r, "id"), principal, limit, offset)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
