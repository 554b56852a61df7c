package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"cardms/internal/audit"
	"cardms/internal/auth"
	"cardms/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) AdminListCards(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit, offset := pagination(query.Get("page"), query.Get("limit"), 50)
	cards, err := h.cards.ListAllCards(r.Context(), query.Get("status"), query.Get("owner_id"), principal, limit, offset)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cards)
}

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit, offset := pagination(query.Get("page"), query.Get("limit"), 50)
	rows, err := h.transfers.ListAllTransactions(r.Context(), query.Get("status"), principal, limit, offset)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

type grantCapabilityRequest struct {
	UserID     string `json:"user_id"`
	Capability string `json:"capability"`
}

func (h *Handler) GrantCapability(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req grantCapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	capability := auth.Capability(req.Capability)
	if capability != auth.CapAdmin && capability != auth.CapViewAudit {
		respondError(w, http.StatusBadRequest, "unknown capability")
		return
	}
	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	grantedBy := principal.UserID
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.caps.Grant(r.Context(), tx, req.UserID, capability, &grantedBy)
	})
	if err != nil {
		h.log.WithError(err).Error("capability grant failed")
		respondError(w, http.StatusInternalServerError, "unable to grant capability")
		return
	}
	h.auditor.Record(audit.Event{
		ActorID:    principal.UserID,
		Action:     "GRANT",
		EntityType: "capability",
		EntityID:   req.UserID,
		Details:    fmt.Sprintf(`{"capability":%q}`, capability),
		IPAddress:  clientIP(r),
	})
	respondJSON(w, http.StatusCreated, map[string]string{"status": "granted"})
}

// AdminDeleteUser removes a user together with its cards and their
// transactions through the storage-level cascades.
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID := chi.URLParam(r, "id")
	deleted, err := h.users.Delete(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("user delete failed")
		respondError(w, http.StatusInternalServerError, "unable to delete user")
		return
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	h.auditor.Record(audit.Event{
		ActorID:    principal.UserID,
		Action:     audit.ActionDelete,
		EntityType: "user",
		EntityID:   userID,
		IPAddress:  clientIP(r),
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset := pagination(query.Get("page"), query.Get("limit"), 50)
	rows, err := h.auditLogs.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// RunExpirySweep triggers the expiry pass on demand; the same pass also
// runs on the configured schedule.
func (h *Handler) RunExpirySweep(w http.ResponseWriter, r *http.Request) {
	count, err := h.cards.ExpireCards(r.Context())
	if err != nil {
		h.log.WithError(err).Error("expiry sweep failed")
		respondError(w, http.StatusInternalServerError, "expiry sweep failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"expired": count})
}
