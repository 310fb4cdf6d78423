package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/util"
)

// Compile-time check that SQLiteStore implements OutboxRepo.
var _ OutboxRepo = (*SQLiteStore)(nil)

const sqliteOutboxColumns = `id, aggregate_id, event_type, payload, processed, processed_at, attempts, last_error, created_at`

func (s *SQLiteStore) EnqueueOutboxEvent(dbtx DBTX, aggregateID, eventType, payload string) (models.OutboxEvent, error) {
	if dbtx == nil {
		dbtx = s.db
	}
	event := models.OutboxEvent{
		ID:          util.GenerateEventID(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}

	_, err := dbtx.Exec(
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload, processed, attempts, created_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?)`,
		event.ID, aggregateID, eventType, payload, event.CreatedAt,
	)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("enqueue outbox event failed: %w", err)
	}
	slog.Debug("SQLiteStore.EnqueueOutboxEvent", "id", event.ID, "aggregateID", aggregateID, "eventType", eventType)
	return event, nil
}

func (s *SQLiteStore) FetchPendingOutboxEvents(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+sqliteOutboxColumns+` FROM outbox_events
		 WHERE processed = 0 AND attempts < ?
		 ORDER BY created_at ASC LIMIT ?`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox events failed: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending outbox iteration failed: %w", err)
	}
	return events, nil
}

func (s *SQLiteStore) CompleteOutboxEvent(id string, sideEffect *models.SideEffect) error {
	now := time.Now()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin complete outbox event failed: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE outbox_events SET processed = 1, processed_at = ?, attempts = attempts + 1 WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("complete outbox event failed: %w", err)
	}

	if sideEffect != nil {
		metadata, err := marshalMetadata(sideEffect.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO audit_logs (id, actor, action, target_id, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			util.GenerateAuditID(), sideEffect.Actor, sideEffect.Action, nilIfEmpty(sideEffect.TargetID), metadata, now,
		)
		if err != nil {
			return fmt.Errorf("insert audit log failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete outbox event failed: %w", err)
	}
	slog.Debug("SQLiteStore.CompleteOutboxEvent", "id", id, "audit_written", sideEffect != nil)
	return nil
}

func (s *SQLiteStore) AbandonOutboxEvent(id, reason string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE outbox_events SET processed = 1, processed_at = ?, last_error = ? WHERE id = ?`,
		now, reason, id,
	)
	if err != nil {
		return fmt.Errorf("abandon outbox event failed: %w", err)
	}
	slog.Debug("SQLiteStore.AbandonOutboxEvent", "id", id, "reason", reason)
	return nil
}

func (s *SQLiteStore) RecordOutboxFailure(id, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE outbox_events SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("record outbox failure failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ExhaustOutboxEvent(id, errMsg string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE outbox_events SET processed = 1, processed_at = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		now, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("exhaust outbox event failed: %w", err)
	}
	slog.Debug("SQLiteStore.ExhaustOutboxEvent", "id", id)
	return nil
}

func (s *SQLiteStore) GetOutboxEvent(id string) (*models.OutboxEvent, error) {
	row := s.db.QueryRow(
		`SELECT `+sqliteOutboxColumns+` FROM outbox_events WHERE id = ?`, id,
	)
	e, err := scanOutboxEventRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox event failed: %w", err)
	}
	return &e, nil
}

func (s *SQLiteStore) ListOutboxEvents(limit int) ([]models.OutboxEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+sqliteOutboxColumns+` FROM outbox_events ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list outbox events failed: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outbox iteration failed: %w", err)
	}
	return events, nil
}
