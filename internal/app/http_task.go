package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body CreateTaskInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	result, err := s.service.CreateTask(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"), body)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.ListTasks(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.GetTask(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *HTTPServer) handleEditTask(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	result, err := s.service.EditTask(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID"), fields)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTask(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID")); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Task deleted successfully"})
}

func (s *HTTPServer) handleAddTaskNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Note string `json:"note"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	result, err := s.service.AddTaskNote(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID"), body.Note)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleListTaskNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.service.ListTaskNotes(r.Context(), identityFrom(r), chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": notes})
}
