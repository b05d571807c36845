package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/runeidx/internal/api/httputil"
	"github.com/Fantasim/runeidx/internal/api/middleware"
	"github.com/Fantasim/runeidx/internal/etching"
	"github.com/Fantasim/runeidx/internal/inscription"
	"github.com/Fantasim/runeidx/internal/store"
)

// GetEtchingHandler returns a handler for GET /api/etching/{txid}, the
// operator surface's get_etching.
func GetEtchingHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txid := chi.URLParam(r, "txid")

		req, err := s.GetEtchingRequest(txid)
		if err != nil {
			slog.Error("get_etching failed", "txid", txid, "error", err)
			writeErr(w, err)
			return
		}
		if req == nil {
			httputil.Error(w, http.StatusNotFound, "ERROR_NOT_FOUND", "etching request not found")
			return
		}
		httputil.JSON(w, http.StatusOK, req)
	}
}

// etchingRequestBody mirrors inscription.EtchingArgs plus the principal
// footing the ICP fee, the JSON shape the operator API's etching(args)
// accepts.
type etchingRequestBody struct {
	inscription.EtchingArgs
	Principal string `json:"principal"`
}

// PostEtchingHandler returns a handler for POST /api/etching, the
// operator surface's etching(args) → commit_txid.
func PostEtchingHandler(e *etching.EtchingState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body etchingRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.Error(w, http.StatusBadRequest, "ERROR_INVALID_REQUEST", "invalid request body")
			return
		}
		if body.Principal == "" {
			httputil.Error(w, http.StatusBadRequest, "ERROR_INVALID_REQUEST", "principal is required")
			return
		}

		requestID := middleware.RequestIDFromContext(r.Context())

		commitTxid, err := e.RequestEtching(r.Context(), &body.EtchingArgs, body.Principal)
		if err != nil {
			slog.Error("etching request failed", "requestId", requestID, "rune", body.RuneName, "principal", body.Principal, "error", err)
			writeErr(w, err)
			return
		}

		slog.Info("etching request accepted", "requestId", requestID, "rune", body.RuneName, "principal", body.Principal, "commitTxid", commitTxid)
		httputil.JSON(w, http.StatusAccepted, map[string]string{"commit_txid": commitTxid})
	}
}

type feeRateRequest struct {
	SatPerVByte int64 `json:"sat_per_vbyte"`
}

// PutFeeRateHandler returns a handler for PUT /api/fee-rate, the operator
// surface's set_tx_fee_per_vbyte for the "high" tier the orchestrator
// always submits at.
func PutFeeRateHandler(e *etching.EtchingState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feeRateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "ERROR_INVALID_REQUEST", "invalid request body")
			return
		}
		if req.SatPerVByte <= 0 {
			httputil.Error(w, http.StatusBadRequest, "ERROR_INVALID_REQUEST", "sat_per_vbyte must be positive")
			return
		}

		e.SetFeeRate(req.SatPerVByte)
		slog.Info("fee rate updated", "satPerVByte", req.SatPerVByte)
		httputil.JSON(w, http.StatusOK, map[string]int64{"sat_per_vbyte": req.SatPerVByte})
	}
}
