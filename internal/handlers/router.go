package handlers

import (
	"net/http"

	"payments/internal/config"
	"payments/internal/db"
	"payments/internal/middleware"
	"payments/internal/store"
	"payments/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	reconcileDB store.Selecter
	txRunner    db.TxRunner
	cfg         config.Config
	users       UserStore
	accounts    AccountStore
	payments    PaymentStore
	admins      AdminStore
	audit       AuditStore
	service     PaymentService
	hub         *websocket.Hub
}

func New(reconcileDB store.Selecter, txRunner db.TxRunner, cfg config.Config, users UserStore, accounts AccountStore, payments PaymentStore, admins AdminStore, audit AuditStore, service PaymentService, hub *websocket.Hub) *Handler {
	return &Handler{
		reconcileDB: reconcileDB,
		txRunner:    txRunner,
		cfg:         cfg,
		users:       users,
		accounts:    accounts,
		payments:    payments,
		admins:      admins,
		audit:       audit,
		service:     service,
		hub:         hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(metricsMiddleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/api/v1", func(api chi.Router) {
		api.Post("/webhook/payment", h.PaymentWebhook)
		api.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/admin/login", h.AdminLogin)
		})
		api.Route("/user", func(r chi.Router) {
			r.Use(middleware.Auth(h.cfg.JWTSecret))
			r.Use(middleware.RequireUser())
			r.Get("/me", h.Me)
			r.Get("/accounts", h.MyAccounts)
			r.Get("/payments", h.MyPayments)
		})
		api.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(h.cfg.JWTSecret))
			r.Use(middleware.RequireAdmin(h.admins))
			r.Get("/me", h.AdminMe)
			r.Post("/users", h.CreateUser)
			r.Get("/users", h.ListUsers)
			r.Put("/users/{id}", h.UpdateUser)
			r.Delete("/users/{id}", h.DeleteUser)
			r.Get("/users/{id}/accounts", h.ListUserAccounts)
			r.Post("/users/{id}/accounts", h.CreateUserAccount)
			r.Get("/audit", h.ListAuditLogs)
			r.Get("/reconcile", h.Reconcile)
		})
		api.Get("/ws/payments", h.WSPayments)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
