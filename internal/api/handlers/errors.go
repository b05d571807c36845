package handlers

import (
	"errors"
	"net/http"

	"github.com/Fantasim/runeidx/internal/api/httputil"
	"github.com/Fantasim/runeidx/internal/config"
)

// writeErr classifies err against the config.Err* sentinel taxonomy and
// writes the matching status code and stable error code. Unrecognized
// errors map to 500/ERROR_INTERNAL.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrInvalidRuneName):
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRuneName, err.Error())
	case errors.Is(err, config.ErrLogoTooLarge):
		httputil.Error(w, http.StatusBadRequest, config.ErrorLogoTooLarge, err.Error())
	case errors.Is(err, config.ErrDivisibilityRange):
		httputil.Error(w, http.StatusBadRequest, config.ErrorDivisibilityRange, err.Error())
	case errors.Is(err, config.ErrZeroCap):
		httputil.Error(w, http.StatusBadRequest, config.ErrorZeroCap, err.Error())
	case errors.Is(err, config.ErrZeroAmount):
		httputil.Error(w, http.StatusBadRequest, config.ErrorZeroAmount, err.Error())
	case errors.Is(err, config.ErrInvalidConfig):
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidConfig, err.Error())
	case errors.Is(err, config.ErrInsufficientUTXO):
		httputil.Error(w, http.StatusConflict, config.ErrorInsufficientUTXO, err.Error())
	case errors.Is(err, config.ErrInsufficientBalance):
		httputil.Error(w, http.StatusPaymentRequired, config.ErrorInsufficientBalance, err.Error())
	case errors.Is(err, config.ErrNoFeeUTXOAvailable):
		httputil.Error(w, http.StatusConflict, config.ErrorNoFeeUTXOAvailable, err.Error())
	case errors.Is(err, config.ErrBitcoinRPCRejected):
		httputil.Error(w, http.StatusBadGateway, config.ErrorBitcoinRPCRejected, err.Error())
	case errors.Is(err, config.ErrBitcoinRPCFailed):
		httputil.Error(w, http.StatusBadGateway, config.ErrorBitcoinRPCFailed, err.Error())
	case errors.Is(err, config.ErrGuardBusy):
		httputil.Error(w, http.StatusTooManyRequests, config.ErrorGuardBusy, err.Error())
	default:
		httputil.Error(w, http.StatusInternalServerError, "ERROR_INTERNAL", err.Error())
	}
}
