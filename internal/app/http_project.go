package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	project, err := s.service.CreateProject(r.Context(), identityFrom(r), body.Title, body.Description)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *HTTPServer) handleUserProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListUserProjects(r.Context(), identityFrom(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *HTTPServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.service.GetProject(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *HTTPServer) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID string `json:"projectId"`
		Username  string `json:"username"`
		Role      string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	member, err := s.service.AddMember(r.Context(), identityFrom(r), body.ProjectID, body.Username, body.Role)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User added to project successfully", "member": member})
}

func (s *HTTPServer) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := s.service.RemoveMember(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"), body.UserID); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User removed from project successfully"})
}

func (s *HTTPServer) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID string `json:"projectId"`
		UserID    string `json:"userId"`
		Role      string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := s.service.UpdateMemberRole(r.Context(), identityFrom(r), body.ProjectID, body.UserID, body.Role); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Role updated successfully"})
}

func (s *HTTPServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteProject(r.Context(), identityFrom(r), chi.URLParam(r, "projectID")); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Project deleted successfully"})
}

func (s *HTTPServer) handleActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := s.service.Activities(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}
