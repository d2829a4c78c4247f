package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"taskboard/api/internal/auth"
)

const maxProfilePictureBytes = 5 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, log *zap.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: log}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID)
	r.Use(s.withCORS)
	r.Use(s.withAccessLog)

	r.Get("/api/health", s.handleHealth)
	r.Head("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Head("/api/ready", s.handleReady)

	r.Post("/api/auth/signup", s.handleSignUp)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/api/auth/logout", s.handleLogout)
		r.Get("/api/auth/verify-token", s.handleVerifyToken)
		r.Put("/api/profile/update", s.handleUpdateProfile)
		r.Get("/api/user/details", s.handleUserDetails)
		r.Get("/api/user/search", s.handleUserSearch)

		r.Post("/api/projects/create", s.handleCreateProject)
		r.Get("/api/projects/user-projects", s.handleUserProjects)
		r.Post("/api/projects/add-user", s.handleAddMember)
		r.Put("/api/projects/update-role", s.handleUpdateMemberRole)
		r.Delete("/api/projects/delete/{projectID}", s.handleDeleteProject)
		r.Get("/api/projects/{projectID}", s.handleGetProject)
		r.Delete("/api/projects/{projectID}/remove-user", s.handleRemoveMember)
		r.Get("/api/projects/{projectID}/activities", s.handleActivities)

		r.Post("/api/projects/{projectID}/tasks", s.handleCreateTask)
		r.Get("/api/projects/{projectID}/tasks", s.handleListTasks)
		r.Get("/api/projects/{projectID}/tasks/{taskID}", s.handleGetTask)
		r.Put("/api/projects/{projectID}/tasks/{taskID}", s.handleEditTask)
		r.Delete("/api/projects/{projectID}/tasks/{taskID}", s.handleDeleteTask)
		r.Post("/api/projects/{projectID}/tasks/{taskID}/updates", s.handleAddTaskNote)
		r.Get("/api/projects/{projectID}/tasks/{taskID}/updates", s.handleListTaskNotes)
	})

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// ── Identity handlers ──

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	user, err := s.service.Register(r.Context(), body.Email, body.Password, body.Username)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	token, user, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Stateless sessions: the client discards the token, the server just acks.
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
}

func (s *HTTPServer) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.VerifyCredential(r.Context(), identityFrom(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxProfilePictureBytes); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "expected multipart form data", nil)
		return
	}

	input := UpdateProfileInput{
		FullName:      r.FormValue("fullName"),
		CompanyName:   r.FormValue("companyName"),
		Role:          r.FormValue("role"),
		ContactNumber: r.FormValue("contactNumber"),
	}

	if file, header, err := r.FormFile("profilePicture"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxProfilePictureBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "could not read profile picture", nil)
			return
		}
		input.Picture = data
		input.PictureContentType = header.Header.Get("Content-Type")
	}

	user, err := s.service.UpdateProfile(r.Context(), identityFrom(r), input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleUserDetails(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.UserDetails(r.Context(), identityFrom(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.SearchUsers(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": results})
}

// ── Auth gate ──

type identityKey struct{}

func identityFrom(r *http.Request) Identity {
	ident, _ := r.Context().Value(identityKey{}).(Identity)
	return ident
}

func (s *HTTPServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header is missing", nil)
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid Authorization header format", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		ident, err := s.service.IdentityFromToken(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", nil)
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", nil)
			default:
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to verify token", nil)
			}
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ── Middleware ──

type requestIDKey struct{}

func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *HTTPServer) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", s.corsOrigin)
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		header.Set("Cache-Control", "no-store")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)

		requestID, _ := r.Context().Value(requestIDKey{}).(string)
		s.log.Info("request",
			zap.String("requestId", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("durationMs", time.Since(started).Milliseconds()),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// ── Helpers ──

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
