package api

import (
	"errors"
	"net/http"

	"github.com/graaaaa/vintagepresence/internal/host"
)

// handlePutSnapshot handles PUT /api/v1/snapshot. Unknown fields are
// ignored so older companions accept snapshots from newer mods.
func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap host.Snapshot
	if err := decodeJSON(w, r, &snap, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.snapshot.Put(r.Context(), snap); err != nil {
		if errors.Is(err, host.ErrInvalidSnapshot) {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), err)
			return
		}
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSnapshot handles DELETE /api/v1/snapshot.
func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	s.snapshot.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
