/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/prometheus/client_golang: Exposes the /metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LedgerRoutes creates and returns a new router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, jwksURL string, internalKey string) http.Handler {
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

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Group routes that require user authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Get("/wallet", h.GetWalletHandler)
		r.Get("/wallet/nft-summary", h.GetNftSummaryHandler)

		r.Post("/deposits", h.CreateDepositHandler)
		r.Get("/deposits", h.ListDepositsHandler)

		r.Post("/withdrawals", h.CreateWithdrawalHandler)
		r.Get("/withdrawals", h.ListWithdrawalsHandler)

		r.Get("/mining", h.GetMiningStatusHandler)
		r.Post("/mining/claim", h.ClaimMiningHandler)

		r.Get("/tasks", h.ListTasksHandler)
		r.Post("/tasks/{taskID}/complete", h.CompleteTaskHandler)

		r.Get("/referrals", h.GetReferralsHandler)
	})

	// Admin and server-to-server routes guarded by the internal API key.
	r.Route("/admin", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))

		r.Post("/deposits/{id}/approve", h.ApproveDepositHandler)
		r.Post("/deposits/{id}/reject", h.RejectDepositHandler)
		r.Post("/withdrawals/{id}/approve", h.ApproveWithdrawalHandler)
		r.Post("/withdrawals/{id}/reject", h.RejectWithdrawalHandler)

		r.Post("/sweeps/earnings", h.RunEarningsSweepHandler)
		r.Post("/sweeps/maturity", h.RunMaturitySweepHandler)
		r.Post("/mining/reset-daily", h.ResetDailyMiningHandler)
		r.Post("/referrals/reward", h.AddReferralRewardHandler)

		r.Get("/stats", h.GetAdminStatsHandler)
	})

	return r
}
