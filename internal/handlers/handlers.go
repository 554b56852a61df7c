package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"cardms/internal/config"
	"cardms/internal/db"
	"cardms/internal/services"
	"cardms/internal/websocket"

	"github.com/sirupsen/logrus"
)

type Handler struct {
	txRunner  db.TxRunner
	cfg       config.Config
	users     UserStore
	caps      CapabilityStore
	auditLogs AuditReader
	auditor   AuditSink
	cards     CardService
	transfers TransferService
	hub       *websocket.Hub
	log       *logrus.Logger
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, caps CapabilityStore, auditLogs AuditReader, auditor AuditSink, cards CardService, transfers TransferService, hub *websocket.Hub, log *logrus.Logger) *Handler {
	return &Handler{
		txRunner:  txRunner,
		cfg:       cfg,
		users:     users,
		caps:      caps,
		auditLogs: auditLogs,
		auditor:   auditor,
		cards:     cards,
		transfers: transfers,
		hub:       hub,
		log:       log,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognized is an internal error; the cause goes to the log, not to the
// client.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCardNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrCardBlocked),
		errors.Is(err, services.ErrCardAlreadyActive),
		errors.Is(err, services.ErrCardExpired):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidExpiration),
		errors.Is(err, services.ErrNegativeBalance):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
