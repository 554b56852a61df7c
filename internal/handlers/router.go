package handlers

import (
	"net/http"

	"cardms/internal/auth"
	"cardms/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authn := middleware.Auth(h.cfg.JWTSecret, h.caps)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authn).Get("/me", h.Me)
	})

	router.Route("/cards", func(r chi.Router) {
		r.Use(authn)
		r.Get("/", h.ListCards)
		r.Post("/", h.CreateCard)
		r.Get("/{id}", h.GetCard)
		r.Delete("/{id}", h.DeleteCard)
		r.Get("/{id}/balance", h.GetCardBalance)
		r.Post("/{id}/block", h.BlockCard)
		r.Post("/{id}/activate", h.ActivateCard)
		r.Get("/{id}/transactions", h.ListCardTransactions)
	})

	router.With(authn).Post("/transfers", h.Transfer)
	router.With(authn).Get("/transactions", h.ListTransactions)
	router.With(authn).Get("/transactions/{id}", h.GetTransaction)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authn)
		r.With(middleware.RequireCapability(auth.CapAdmin)).Get("/cards", h.AdminListCards)
		r.With(middleware.RequireCapability(auth.CapAdmin)).Get("/transactions", h.AdminListTransactions)
		r.With(middleware.RequireCapability(auth.CapAdmin)).Post("/capabilities/grant", h.GrantCapability)
		r.With(middleware.RequireCapability(auth.CapAdmin)).Delete("/users/{id}", h.AdminDeleteUser)
		r.With(middleware.RequireCapability(auth.CapAdmin)).Post("/cards/expire-sweep", h.RunExpirySweep)
		r.With(middleware.RequireCapability(auth.CapViewAudit)).Get("/audit", h.ListAuditLogs)
	})

	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
