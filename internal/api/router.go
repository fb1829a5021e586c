/**
 * @description
 * This file sets up the HTTP router for the teller service. All routes live
 * under /transactions; everything except the health check requires a bearer token.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// TransactionRoutes creates and returns the router for the teller service.
func TransactionRoutes(h *TransactionHandlers, auth func(http.Handler) http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After", "X-Export-Schema-Version"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("healthy"))
		})

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Post("/deposit", h.DepositHandler)
			r.Post("/withdraw", h.WithdrawHandler)
			r.Get("/enquiry", h.EnquiryHandler)
			r.Get("/report", h.ReportHandler)
			r.Get("/download", h.DownloadHandler)
		})
	})

	return r
}
