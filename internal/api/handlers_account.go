package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/types"
)

type signupRequest struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	InviteToken string `json:"inviteToken"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}

type consumeInvitationRequest struct {
	Token string `json:"token" validate:"required"`
}

// handleSignup handles POST /api/signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := s.services.Signup.Register(r.Context(), req.Email, req.Password, req.InviteToken)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := s.authResponse(user)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// handleLogin handles POST /api/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := s.services.Signup.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := s.authResponse(user)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// authResponse attaches a bearer token when token signing is enabled
func (s *Server) authResponse(user *models.User) (*authResponse, error) {
	resp := &authResponse{User: user}
	if !s.auth.Enabled() {
		return resp, nil
	}

	token, expiresAt, err := s.auth.IssueToken(user.ID, "")
	if err != nil {
		return nil, apperrors.NewInternalError("failed to issue token", err)
	}
	resp.Token = token
	resp.ExpiresAt = &expiresAt
	return resp, nil
}

// handleGetFeature handles GET /api/features/{name}
func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	feature := mux.Vars(r)["name"]

	enabled, err := s.services.Entitlements.HasFeature(r.Context(), userID(r), feature)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"feature": feature,
		"enabled": enabled,
	})
}

// handleGetLimit handles GET /api/limits/{kind}
func (s *Server) handleGetLimit(w http.ResponseWriter, r *http.Request) {
	kind, ok := types.ParseResourceKind(mux.Vars(r)["kind"])
	if !ok {
		respondError(w, r, apperrors.NewInvalidParameterError("kind", "must be one of: integration, tracked_keyword, competitor"))
		return
	}

	allowed, reason, err := s.services.Limits.CanCreate(r.Context(), userID(r), kind)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"kind":    kind,
		"allowed": allowed,
		"reason":  reason,
	})
}

// handleConsumeInvitation handles POST /api/invitations/consume
func (s *Server) handleConsumeInvitation(w http.ResponseWriter, r *http.Request) {
	var req consumeInvitationRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	planID, err := s.services.Invitations.ConsumeInvitationToken(r.Context(), req.Token, userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"planId": planID})
}
