package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/post-analyzer/internal/service"
)

type trackedValueRequest struct {
	Value string `json:"value" validate:"required"`
}

// handleConnectIntegration handles POST /api/integrations
func (s *Server) handleConnectIntegration(w http.ResponseWriter, r *http.Request) {
	var req service.ConnectIntegrationRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	integration, err := s.services.Resources.ConnectIntegration(r.Context(), userID(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, integration)
}

// handleRevokeIntegration handles DELETE /api/integrations/{provider}
func (s *Server) handleRevokeIntegration(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Resources.RevokeIntegration(r.Context(), userID(r), mux.Vars(r)["provider"]); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddKeyword handles POST /api/keywords
func (s *Server) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	var req trackedValueRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	resource, err := s.services.Resources.AddTrackedKeyword(r.Context(), userID(r), req.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resource)
}

// handleAddCompetitor handles POST /api/competitors
func (s *Server) handleAddCompetitor(w http.ResponseWriter, r *http.Request) {
	var req trackedValueRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	resource, err := s.services.Resources.AddCompetitor(r.Context(), userID(r), req.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resource)
}
