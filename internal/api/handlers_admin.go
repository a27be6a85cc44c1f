package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/post-analyzer/internal/errors"
)

type generateInvitationRequest struct {
	PlanID string `json:"planId" validate:"required"`
	// TTL is a Go duration such as "168h"; empty uses the configured default
	TTL string `json:"ttl"`
}

// handleGenerateInvitation handles POST /admin/invitations
func (s *Server) handleGenerateInvitation(w http.ResponseWriter, r *http.Request) {
	var req generateInvitationRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		parsed, err := time.ParseDuration(req.TTL)
		if err != nil || parsed <= 0 {
			respondError(w, r, apperrors.NewInvalidParameterError("ttl", "must be a positive duration such as 168h"))
			return
		}
		ttl = parsed
	}

	token, err := s.services.Invitations.Generate(r.Context(), req.PlanID, ttl)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, token)
}

// handleInspectInvitation handles GET /admin/invitations/{token}
func (s *Server) handleInspectInvitation(w http.ResponseWriter, r *http.Request) {
	token, err := s.services.Invitations.Inspect(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, token)
}
