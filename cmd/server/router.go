package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kevin07696/marketplace-ledger/internal/app"
	"github.com/kevin07696/marketplace-ledger/internal/handlers/admin"
	cronHandler "github.com/kevin07696/marketplace-ledger/internal/handlers/cron"
	"github.com/kevin07696/marketplace-ledger/pkg/middleware"
	"github.com/kevin07696/marketplace-ledger/pkg/observability"
	"github.com/kevin07696/marketplace-ledger/pkg/shutdown"
)

// newRouter mounts the cron triggers and the admin API
func newRouter(a *app.App, rateLimiter *middleware.RateLimiter, cronJobs *shutdown.InFlightTracker) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observability.HTTPMetrics)
	r.Use(middleware.SecurityHeaders(a.Config.Logger.Development))

	ledgerCron := cronHandler.NewLedgerHandler(
		a.Eligibility,
		a.Settlements,
		a.Reconciliation,
		a.Ledger.DiscrepancyTolerance,
		a.Logger,
		a.Config.Cron.Secret,
	)

	r.Route("/cron", func(r chi.Router) {
		r.Use(cronJobs.Middleware)
		r.Use(middleware.Deadline(a.Database.BatchQueryContext))
		r.Post("/calculate-eligibility", ledgerCron.CalculateEligibility)
		r.Post("/generate-settlements", ledgerCron.GenerateSettlements)
		r.Post("/reconcile", ledgerCron.Reconcile)
	})

	adminAPI := admin.NewHandler(
		a.Refunds,
		a.Settlements,
		a.Reconciliation,
		a.Tax,
		a.Commission,
		a.Logger,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Use(chimiddleware.Compress(5, "application/json"))
		r.Use(middleware.Deadline(a.Database.SimpleQueryContext))
		r.Mount("/", adminAPI.Routes())
	})

	return r
}
