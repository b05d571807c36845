package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/runeidx/internal/api/httputil"
	"github.com/Fantasim/runeidx/internal/runes"
	"github.com/Fantasim/runeidx/internal/store"
)

// GetRuneHandler returns a handler for GET /api/runes/{spacedRune}, the
// operator surface's get_rune.
func GetRuneHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "spacedRune")
		sr, err := runes.ParseSpacedRune(raw)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "ERROR_INVALID_RUNE_NAME", err.Error())
			return
		}

		entry, err := s.GetRuneEntryByName(sr.Rune)
		if err != nil {
			slog.Error("get_rune failed", "rune", raw, "error", err)
			writeErr(w, err)
			return
		}
		if entry == nil {
			httputil.Error(w, http.StatusNotFound, "ERROR_NOT_FOUND", "rune not found")
			return
		}
		httputil.JSON(w, http.StatusOK, entry)
	}
}

// GetRuneByIDHandler returns a handler for GET /api/runes/by-id/{block}/{tx},
// the operator surface's get_rune_by_id.
func GetRuneByIDHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := runes.ParseRuneId(chi.URLParam(r, "block") + ":" + chi.URLParam(r, "tx"))
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "ERROR_INVALID_RUNE_ID", err.Error())
			return
		}

		entry, err := s.GetRuneEntry(id)
		if err != nil {
			slog.Error("get_rune_by_id failed", "id", id, "error", err)
			writeErr(w, err)
			return
		}
		if entry == nil {
			httputil.Error(w, http.StatusNotFound, "ERROR_NOT_FOUND", "rune not found")
			return
		}
		httputil.JSON(w, http.StatusOK, entry)
	}
}
