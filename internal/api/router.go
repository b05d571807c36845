package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/runeidx/internal/api/handlers"
	"github.com/Fantasim/runeidx/internal/api/middleware"
	"github.com/Fantasim/runeidx/internal/bitcoinrpc"
	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/etching"
	"github.com/Fantasim/runeidx/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter creates and configures the Chi router serving the operator
// query/admin API: rune and balance lookups against the store, plus the
// etching orchestrator's request/reconcile/fee-rate surface.
func NewRouter(s *store.Store, e *etching.EtchingState, cfg *config.Config, rpc bitcoinrpc.Client) chi.Router {
	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.NewHostCheck(cfg))
	r.Use(middleware.NewCORS(cfg))
	r.Use(middleware.CSRF)

	slog.Info("router initialized",
		"middleware", []string{"requestLogging", "hostCheck", "cors", "csrf"},
	)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(cfg, Version, rpc))

		// Rune lookups
		r.Get("/runes/{spacedRune}", handlers.GetRuneHandler(s))
		r.Get("/runes/by-id/{block}/{tx}", handlers.GetRuneByIDHandler(s))

		// Balances
		r.Post("/balances", handlers.GetBalancesHandler(s))

		// Etching orchestrator
		r.Get("/etching/{txid}", handlers.GetEtchingHandler(s))
		r.Post("/etching", handlers.PostEtchingHandler(e))
		r.Put("/fee-rate", handlers.PutFeeRateHandler(e))
	})

	return r
}
