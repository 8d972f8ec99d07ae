/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the register frontend

ROUTE GROUPS:
  /api/accounts/*       Account roster and ledger movements
  /api/checkout         Cart settlement
  /api/exchanges        Exchange settlement
  /api/billing/*        Collections projection
  /api/transactions/*   Journal listing and cancellation
  /api/reports/*        Aggregations
  /api/cash             Cash drawer
  /api/products         Catalog
  /metrics              Prometheus

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, reg *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Post("/{id}/payments", h.ReceivePayment)
			r.Post("/{id}/adjustments", h.ApplyAdjustment)
			r.Post("/{id}/deactivate", h.DeactivateAccount)
			r.Post("/{id}/activate", h.ActivateAccount)
		})

		r.Post("/checkout", h.Checkout)
		r.Post("/exchanges", h.Exchange)

		r.Route("/billing", func(r chi.Router) {
			r.Get("/debtors", h.ListDebtors)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Delete("/{id}", h.CancelTransaction)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.ReportSummary)
			r.Get("/accounts", h.ReportAccounts)
			r.Get("/products", h.ReportProducts)
			r.Get("/daily", h.ReportDaily)
		})

		r.Route("/cash", func(r chi.Router) {
			r.Get("/", h.ListCash)
			r.Post("/", h.AddCashEntry)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.PutProduct)
		})
	})

	r.Method("GET", "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}
