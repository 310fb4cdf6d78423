package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pulseboard/pulseboard/internal/models"
)

// createUserRequest is the body of POST /users.
type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// updateUserRequest is the body of PUT /users/{id}.
type updateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// digestTriggerRequest is the body of POST /digest/weekly.
type digestTriggerRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// usersHandler serves POST /users and GET /users.
func (s *Server) usersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createUser(w, r)
	case http.MethodGet:
		s.listUsers(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// createUser inserts the user row and enqueues the user.created event in one
// transaction: either both persist or neither does.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	candidate := models.User{Email: strings.TrimSpace(req.Email), Name: strings.TrimSpace(req.Name)}
	if err := candidate.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if existing, err := s.store.GetUserByEmail(candidate.Email); err != nil {
		slog.Error("Server.createUser: email lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, models.ErrEmailAlreadyExists.Error())
		return
	}

	tx, err := s.store.Begin()
	if err != nil {
		slog.Error("Server.createUser: begin failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	defer tx.Rollback()

	user, err := s.store.CreateUser(tx, candidate.Email, candidate.Name)
	if err != nil {
		slog.Error("Server.createUser: insert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	payload, err := models.EncodePayload(models.UserCreatedPayload{UserID: user.ID, Email: user.Email, Name: user.Name})
	if err != nil {
		slog.Error("Server.createUser: payload encode failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	if _, err := s.store.EnqueueOutboxEvent(tx, user.ID, models.EventTypeUserCreated, payload); err != nil {
		slog.Error("Server.createUser: enqueue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("Server.createUser: commit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	slog.Info("Server.createUser: user created", "id", user.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(user))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListActiveUsers()
	if err != nil {
		slog.Error("Server.listUsers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(users))
}

// userHandler serves GET/PUT/DELETE /users/{id}.
func (s *Server) userHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getUser(w, r, id)
	case http.MethodPut:
		s.updateUser(w, r, id)
	case http.MethodDelete:
		s.deleteUser(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := s.store.GetUser(id)
	if err != nil {
		slog.Error("Server.getUser failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(user))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	candidate := models.User{Email: strings.TrimSpace(req.Email), Name: strings.TrimSpace(req.Name)}
	if err := candidate.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.UpdateUser(id, candidate.Email, candidate.Name)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		slog.Error("Server.updateUser failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(user))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.store.SoftDeleteUser(id); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		slog.Error("Server.deleteUser failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// digestHandler serves POST /digest/weekly.
func (s *Server) digestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req digestTriggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	result, err := s.digest.Trigger(strings.TrimSpace(req.IdempotencyKey))
	if err != nil {
		slog.Error("Server.digestHandler: trigger failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to trigger weekly digest")
		return
	}

	status := http.StatusCreated
	if result.Idempotent {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, models.Success(result))
}

// outboxEventsHandler serves GET /outbox/events (diagnostics).
func (s *Server) outboxEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	events, err := s.store.ListOutboxEvents(DefaultListLimit)
	if err != nil {
		slog.Error("Server.outboxEventsHandler failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list outbox events")
		return
	}
	if events == nil {
		events = []models.OutboxEvent{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(events))
}

// auditHandler serves GET /audit (diagnostics).
func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	logs, err := s.store.ListAuditLogs(DefaultListLimit)
	if err != nil {
		slog.Error("Server.auditHandler failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit logs")
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(logs))
}

// healthHandler serves GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
