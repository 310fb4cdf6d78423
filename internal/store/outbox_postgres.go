package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/util"
)

// Compile-time check that PostgresStore implements OutboxRepo.
var _ OutboxRepo = (*PostgresStore)(nil)

const postgresOutboxColumns = `id, aggregate_id, event_type, payload, processed, processed_at, attempts, last_error, created_at`

func (s *PostgresStore) EnqueueOutboxEvent(dbtx DBTX, aggregateID, eventType, payload string) (models.OutboxEvent, error) {
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
		 VALUES ($1, $2, $3, $4, FALSE, 0, $5)`,
		event.ID, aggregateID, eventType, payload, event.CreatedAt,
	)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("enqueue outbox event failed: %w", err)
	}
	slog.Debug("PostgresStore.EnqueueOutboxEvent", "id", event.ID, "aggregateID", aggregateID, "eventType", eventType)
	return event, nil
}

func (s *PostgresStore) FetchPendingOutboxEvents(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+postgresOutboxColumns+` FROM outbox_events
		 WHERE processed = FALSE AND attempts < $1
		 ORDER BY created_at ASC LIMIT $2`,
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

func (s *PostgresStore) CompleteOutboxEvent(id string, sideEffect *models.SideEffect) error {
	now := time.Now()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin complete outbox event failed: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE outbox_events SET processed = TRUE, processed_at = $1, attempts = attempts + 1 WHERE id = $2`,
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
			`INSERT INTO audit_logs (id, actor, action, target_id, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			util.GenerateAuditID(), sideEffect.Actor, sideEffect.Action, nilIfEmpty(sideEffect.TargetID), metadata, now,
		)
		if err != nil {
			return fmt.Errorf("insert audit log failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete outbox event failed: %w", err)
	}
	slog.Debug("PostgresStore.CompleteOutboxEvent", "id", id, "audit_written", sideEffect != nil)
	return nil
}

func (s *PostgresStore) AbandonOutboxEvent(id, reason string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE outbox_events SET processed = TRUE, processed_at = $1, last_error = $2 WHERE id = $3`,
		now, reason, id,
	)
	if err != nil {
		return fmt.Errorf("abandon outbox event failed: %w", err)
	}
	slog.Debug("PostgresStore.AbandonOutboxEvent", "id", id, "reason", reason)
	return nil
}

func (s *PostgresStore) RecordOutboxFailure(id, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE outbox_events SET attempts = attempts + 1, last_error = $1 WHERE id = $2`,
		errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("record outbox failure failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ExhaustOutboxEvent(id, errMsg string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE outbox_events SET processed = TRUE, processed_at = $1, attempts = attempts + 1, last_error = $2 WHERE id = $3`,
		now, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("exhaust outbox event failed: %w", err)
	}
	slog.Debug("PostgresStore.ExhaustOutboxEvent", "id", id)
	return nil
}

func (s *PostgresStore) GetOutboxEvent(id string) (*models.OutboxEvent, error) {
	row := s.db.QueryRow(
		`SELECT `+postgresOutboxColumns+` FROM outbox_events WHERE id = $1`, id,
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

func (s *PostgresStore) ListOutboxEvents(limit int) ([]models.OutboxEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+postgresOutboxColumns+` FROM outbox_events ORDER BY created_at DESC LIMIT $1`, limit,
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
