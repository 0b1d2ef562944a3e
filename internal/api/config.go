package api

import (
	"net/http"

	"github.com/graaaaa/vintagepresence/internal/app"
)

// handleGetConfig handles GET /api/v1/config requests.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.GetConfig(r.Context()))
}

// handlePutConfig handles PUT /api/v1/config requests.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req app.ConfigUpdateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := s.cfg.UpdateConfig(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
