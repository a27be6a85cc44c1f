package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/post-analyzer/internal/types"
)

type createTaskRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

type createTaskResponse struct {
	TaskID string `json:"taskId"`
}

type subTaskStatusRequest struct {
	Status string `json:"status" validate:"required,task-status"`
}

// userID returns the authenticated caller; the auth middleware guarantees one
func userID(r *http.Request) string {
	principal, _ := PrincipalFrom(r.Context())
	return principal.UserID
}

// decodeAndValidate parses the JSON body into v and validates it
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := parseJSONBody(w, r, v); err != nil {
		respondError(w, r, err)
		return false
	}
	if err := s.validator.Validate(v); err != nil {
		respondError(w, r, err)
		return false
	}
	return true
}

// handleCreateTask handles POST /api/tasks
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	taskID, err := s.services.Tasks.CreateAnalysisTask(r.Context(), userID(r), req.URL)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+taskID)
	respondJSON(w, http.StatusCreated, createTaskResponse{TaskID: taskID})
}

// handleGetTask handles GET /api/tasks/{id}
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	view, err := s.services.Tasks.GetTask(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// handleSubTaskStatus handles POST /internal/subtasks/{id}/status
func (s *Server) handleSubTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req subTaskStatusRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	view, err := s.services.Tasks.TransitionSubTask(r.Context(), mux.Vars(r)["id"], types.TaskStatus(req.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
