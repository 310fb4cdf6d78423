// Package store provides storage backends for pulseboard.
//
// It implements the durable outbox event queue, the digest idempotency
// records, the append-only audit log, and the user table, backed by either
// PostgreSQL or SQLite.
package store

import (
	"database/sql"
	"strings"

	"github.com/pulseboard/pulseboard/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL-style DSNs and "sqlite"
// otherwise (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// DBTX is the subset of database/sql operations the enqueue API needs. It is
// satisfied by both *sql.DB and *sql.Tx, so an event insert can compose into
// the caller's multi-statement commit: if the enclosing transaction aborts,
// the event row does not persist.
type DBTX interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// OutboxRepo defines the interface for durable outbox event persistence.
// Enqueue belongs to producing callers; every other method belongs to the
// dispatcher, which is the sole mutator of event rows.
type OutboxRepo interface {
	// EnqueueOutboxEvent inserts a new event row with processed=false and
	// attempts=0 using the supplied handle, and returns the created row.
	EnqueueOutboxEvent(dbtx DBTX, aggregateID, eventType, payload string) (models.OutboxEvent, error)

	// FetchPendingOutboxEvents returns up to limit rows where processed=false
	// and attempts < maxAttempts, oldest first.
	FetchPendingOutboxEvents(limit, maxAttempts int) ([]models.OutboxEvent, error)

	// CompleteOutboxEvent marks an event processed (attempts+1) and, if
	// sideEffect is non-nil, inserts the corresponding audit row in the same
	// transaction. Both writes commit together or not at all.
	CompleteOutboxEvent(id string, sideEffect *models.SideEffect) error

	// AbandonOutboxEvent terminally marks an event processed without bumping
	// attempts. Used when no handler is registered for its type.
	AbandonOutboxEvent(id, reason string) error

	// RecordOutboxFailure increments attempts and stores the error, leaving
	// the event eligible for the next poll.
	RecordOutboxFailure(id, errMsg string) error

	// ExhaustOutboxEvent increments attempts, stores the error, and terminally
	// marks the event processed. Used when the retry bound is reached.
	ExhaustOutboxEvent(id, errMsg string) error

	// GetOutboxEvent retrieves a single event by ID.
	GetOutboxEvent(id string) (*models.OutboxEvent, error)

	// ListOutboxEvents returns the most recently created events, newest first.
	ListOutboxEvents(limit int) ([]models.OutboxEvent, error)
}

// DigestRepo defines the interface for digest batch idempotency records.
type DigestRepo interface {
	// GetDigestBatchByKey returns the batch recorded under an idempotency key,
	// or nil if none exists.
	GetDigestBatchByKey(key string) (*models.DigestBatch, error)

	// CreateDigestBatch enqueues one digest.weekly event per active user and
	// inserts the DigestBatch row in a single transaction. key may be empty,
	// in which case the batch is recorded without duplicate protection.
	CreateDigestBatch(key, weekKey string) (models.DigestBatch, error)
}

// AuditRepo defines the read interface for the append-only audit log. Writes
// happen only inside CompleteOutboxEvent.
type AuditRepo interface {
	// ListAuditLogs returns the most recent audit entries, newest first.
	ListAuditLogs(limit int) ([]models.AuditLog, error)
}

// UserRepo defines the interface for user persistence with soft deletes.
type UserRepo interface {
	// CreateUser inserts a new user using the supplied handle, so callers can
	// pair the insert with an event enqueue in one transaction.
	CreateUser(dbtx DBTX, email, name string) (models.User, error)

	// GetUser retrieves a user by ID. Soft-deleted users are not returned.
	GetUser(id string) (*models.User, error)

	// GetUserByEmail retrieves a user by email. Soft-deleted users are not returned.
	GetUserByEmail(email string) (*models.User, error)

	// ListActiveUsers returns all users without a deletion marker, oldest first.
	ListActiveUsers() ([]models.User, error)

	// UpdateUser updates a user's email and name.
	UpdateUser(id, email, name string) (*models.User, error)

	// SoftDeleteUser marks a user deleted without removing the row.
	SoftDeleteUser(id string) error
}

// Store aggregates the repository interfaces over a single database handle
// shared by the API layer and the dispatcher.
type Store interface {
	OutboxRepo
	DigestRepo
	AuditRepo
	UserRepo

	// Begin starts a transaction on the underlying database.
	Begin() (*sql.Tx, error)

	// Close closes the underlying database connection.
	Close() error
}
