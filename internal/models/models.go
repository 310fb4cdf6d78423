// Package models defines the core data structures for pulseboard.
//
// It includes the outbox event row, the digest idempotency record, the audit
// log entry, and the user entity, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Event type tags understood by the dispatcher's handler registry.
const (
	// EventTypeUserCreated is enqueued alongside every user insert.
	EventTypeUserCreated = "user.created"
	// EventTypeWeeklyDigest is enqueued once per active user by the digest trigger.
	EventTypeWeeklyDigest = "digest.weekly"
)

// Validation constants for input validation
const (
	// MaxEmailLength defines the maximum allowed length for a user email
	MaxEmailLength = 254
	// MaxNameLength defines the maximum allowed length for a user display name
	MaxNameLength = 100
)

// Error variables for better error handling and testability
var (
	ErrEmptyEmail         = errors.New("email cannot be empty")
	ErrEmailTooLong       = errors.New("email exceeds maximum length")
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrNameTooLong        = errors.New("name exceeds maximum length")
	ErrEmptyAggregateID   = errors.New("aggregate ID cannot be empty")
	ErrEmptyEventType     = errors.New("event type cannot be empty")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// OutboxEvent is one durable row per domain event awaiting or having completed
// delivery. Rows are created by the enqueue API inside the producing
// transaction and mutated only by the dispatcher; once Processed is true the
// row is never touched again.
type OutboxEvent struct {
	ID          string     `json:"id"`
	AggregateID string     `json:"aggregate_id"`
	EventType   string     `json:"event_type"`
	Payload     string     `json:"payload"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DigestBatchStatus represents the terminal outcome of a digest batch trigger.
type DigestBatchStatus string

const (
	DigestBatchStatusCompleted DigestBatchStatus = "completed"
	DigestBatchStatusFailed    DigestBatchStatus = "failed"
)

// DigestBatch is the idempotency record for a weekly digest trigger. For a
// given non-empty IdempotencyKey at most one row exists; a second trigger with
// the same key replays the stored result instead of re-enqueuing.
type DigestBatch struct {
	ID             string            `json:"id"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	UserCount      int               `json:"user_count"`
	Status         DigestBatchStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// AuditLog is an append-only record of a side effect the dispatcher performed.
// It is written inside the same transaction that marks the producing event
// processed, so event completion and its audit trail commit together.
type AuditLog struct {
	ID        string            `json:"id"`
	Actor     string            `json:"actor"`
	Action    string            `json:"action"`
	TargetID  string            `json:"target_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// SideEffect is the optional audit data a handler returns after performing its
// side effect. A nil SideEffect means no audit row is written. Handlers never
// persist it themselves; the dispatcher binds the write to the completion
// commit.
type SideEffect struct {
	Actor    string            `json:"actor"`
	Action   string            `json:"action"`
	TargetID string            `json:"target_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// User is the business entity the CRUD layer manages. Deletion is soft: a set
// DeletedAt excludes the user from listings and digest batches.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Validate checks the user's writable fields.
func (u User) Validate() error {
	if u.Email == "" {
		return ErrEmptyEmail
	}
	if len(u.Email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	if u.Name == "" {
		return ErrEmptyName
	}
	if len(u.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// APIResponse provides a consistent JSON envelope for all API endpoints.
type APIResponse struct {
	Status string      `json:"status"` // "ok" or "error"
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Success creates a successful API response with the given result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// Error creates an error API response with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Error: message}
}
