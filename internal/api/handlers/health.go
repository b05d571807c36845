package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/runeidx/internal/api/httputil"
	"github.com/Fantasim/runeidx/internal/bitcoinrpc"
	"github.com/Fantasim/runeidx/internal/config"
)

// providerStatusSource is implemented by bitcoinrpc.HTTPClient but not
// bitcoinrpc.FakeClient, so health checks against a fake RPC client simply
// omit the providers field rather than reporting fabricated state.
type providerStatusSource interface {
	ProviderStatuses() []bitcoinrpc.ProviderStatus
}

// HealthHandler returns a handler for the GET /api/health endpoint,
// additionally surfacing each Bitcoin RPC provider's live circuit-breaker
// state when rpc exposes it.
func HealthHandler(cfg *config.Config, version string, rpc bitcoinrpc.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		resp := map[string]any{
			"status":  "ok",
			"version": version,
			"network": cfg.Network,
			"dbPath":  cfg.DBPath,
		}
		if src, ok := rpc.(providerStatusSource); ok {
			resp["providers"] = src.ProviderStatuses()
		}

		httputil.JSON(w, http.StatusOK, resp)
	}
}
