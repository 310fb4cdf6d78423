package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pulseboard/pulseboard/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanOutboxEvent scans an OutboxEvent from sql.Rows.
func scanOutboxEvent(rows *sql.Rows) (models.OutboxEvent, error) {
	var e models.OutboxEvent
	var lastError sql.NullString
	var processedAt sql.NullTime
	err := rows.Scan(
		&e.ID, &e.AggregateID, &e.EventType, &e.Payload,
		&e.Processed, &processedAt, &e.Attempts, &lastError, &e.CreatedAt,
	)
	if err != nil {
		return e, fmt.Errorf("scan outbox event failed: %w", err)
	}
	e.LastError = lastError.String
	if processedAt.Valid {
		e.ProcessedAt = &processedAt.Time
	}
	return e, nil
}

// scanOutboxEventRow scans an OutboxEvent from a single sql.Row.
func scanOutboxEventRow(row *sql.Row) (models.OutboxEvent, error) {
	var e models.OutboxEvent
	var lastError sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(
		&e.ID, &e.AggregateID, &e.EventType, &e.Payload,
		&e.Processed, &processedAt, &e.Attempts, &lastError, &e.CreatedAt,
	)
	if err != nil {
		return e, err
	}
	e.LastError = lastError.String
	if processedAt.Valid {
		e.ProcessedAt = &processedAt.Time
	}
	return e, nil
}

// scanUser scans a User from sql.Rows.
func scanUser(rows *sql.Rows) (models.User, error) {
	var u models.User
	var deletedAt sql.NullTime
	err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err != nil {
		return u, fmt.Errorf("scan user failed: %w", err)
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return u, nil
}

// collectUsers drains and closes a user result set.
func collectUsers(rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()
	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user iteration failed: %w", err)
	}
	return users, nil
}

// marshalMetadata serializes audit metadata for storage; empty maps become NULL.
func marshalMetadata(metadata map[string]string) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize audit metadata: %w", err)
	}
	return string(data), nil
}

// scanAuditLog scans an AuditLog from sql.Rows.
func scanAuditLog(rows *sql.Rows) (models.AuditLog, error) {
	var a models.AuditLog
	var targetID, metadataJSON sql.NullString
	err := rows.Scan(&a.ID, &a.Actor, &a.Action, &targetID, &metadataJSON, &a.CreatedAt)
	if err != nil {
		return a, fmt.Errorf("scan audit log failed: %w", err)
	}
	a.TargetID = targetID.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &a.Metadata); err != nil {
			return a, fmt.Errorf("failed to deserialize audit metadata: %w", err)
		}
	}
	return a, nil
}
