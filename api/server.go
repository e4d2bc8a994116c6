/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/clients/*    Client management + per-client arrears
  /api/projects/*   Projects and lots
  /api/plans/*      Financing plan templates
  /api/sales/*      Sales, schedules, redistribution
  /api/payments/*   Payment recording/reversal
  /api/reports/*    Arrears reporting
  /api/seed/*       Demo data (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
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
		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Get("/{id}/overdue", h.GetClientOverdue)
			r.Get("/{id}/sales", h.ListClientSales)
		})

		// Project and lot routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}/lots", h.ListLots)
		})
		r.Post("/lots", h.CreateLot)

		// Plan template routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.CreateSale)
			r.Get("/{id}", h.GetSale)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Get("/{id}/overdue", h.GetSaleOverdue)
			r.Get("/{id}/payments", h.ListSalePayments)
			r.Post("/{id}/redistribute", h.RedistributeSale)
			r.Post("/{id}/withdraw", h.WithdrawSale)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.RecordPayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/arrears", h.GetArrearsReport)
		})

		// Demo data routes (dev only)
		r.Post("/seed/demo", h.SeedDemo)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Installment Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Installment Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/clients">/api/clients</a> - List clients</li>
<li><a href="/api/plans">/api/plans</a> - List financing plans</li>
<li><a href="/api/reports/arrears">/api/reports/arrears</a> - Arrears report</li>
</ul>
</body>
</html>`))
	})

	return r
}
