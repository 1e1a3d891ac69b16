/**
 * @description
 * This file sets up the HTTP router for the investment-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// InvestmentRoutes creates and returns a new router for the investment service.
func InvestmentRoutes(h *InvestmentHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		// User-facing endpoints.
		r.Get("/investments", h.ListInvestmentsHandler)
		r.Post("/withdrawals", h.RequestWithdrawalHandler)
		r.Get("/withdrawals", h.ListWithdrawalsHandler)

		// Admin endpoints.
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Get("/admin/deposits", h.ListDepositsHandler)
			r.Post("/admin/deposits/{depositID}/approve", h.ApproveDepositHandler)
			r.Post("/admin/deposits/{depositID}/reject", h.RejectDepositHandler)

			r.Get("/admin/withdrawals", h.ListWithdrawalsByStatusHandler)
			r.Post("/admin/withdrawals/{withdrawalID}/approve", h.ApproveWithdrawalHandler)
			r.Post("/admin/withdrawals/{withdrawalID}/reject", h.RejectWithdrawalHandler)
			r.Post("/admin/withdrawals/{withdrawalID}/sent", h.MarkWithdrawalSentHandler)

			r.Patch("/admin/investments/{investmentID}", h.AdjustInvestmentHandler)
		})
	})

	// Internal service-to-service endpoints.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/internal/accrual/run", h.RunAccrualHandler)
	})

	return r
}
