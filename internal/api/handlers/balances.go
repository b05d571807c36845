package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Fantasim/runeidx/internal/api/httputil"
	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/Fantasim/runeidx/internal/store"
)

type balancesRequest struct {
	Outpoints []string `json:"outpoints"`
}

// GetBalancesHandler returns a handler for POST /api/balances, the
// operator surface's get_rune_balances_for_outputs. Rejects bodies over
// MAX_OUTPOINTS (enforced again, defensively, by the store).
func GetBalancesHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req balancesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "ERROR_INVALID_REQUEST", "invalid request body")
			return
		}

		outpoints := make([]runes.Outpoint, len(req.Outpoints))
		for i, raw := range req.Outpoints {
			op, err := runes.ParseOutpoint(raw)
			if err != nil {
				httputil.Error(w, http.StatusBadRequest, "ERROR_INVALID_REQUEST", err.Error())
				return
			}
			outpoints[i] = op
		}

		results, err := s.GetRuneBalancesForOutputs(outpoints)
		if err != nil {
			slog.Error("get_rune_balances_for_outputs failed", "count", len(outpoints), "error", err)
			writeErr(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, results)
	}
}
