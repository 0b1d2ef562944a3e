package api

import (
	"errors"
	"net/http"

	"github.com/graaaaa/vintagepresence/internal/app"
)

// handlePresence handles GET /api/v1/presence.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.presence.GetPresence(r.Context()))
}

type previewRequest struct {
	Template string `json:"template"`
}

// handlePreview handles POST /api/v1/preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := s.preview.Preview(r.Context(), req.Template)
	if err != nil {
		if errors.Is(err, app.ErrTemplateTooLong) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error(), err)
			return
		}
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type tokensResponse struct {
	Tokens []string `json:"tokens"`
}

// handleTokens handles GET /api/v1/tokens.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tokensResponse{Tokens: s.preview.Tokens(r.Context())})
}
