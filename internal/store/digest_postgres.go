package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/util"
)

// Compile-time check that PostgresStore implements DigestRepo.
var _ DigestRepo = (*PostgresStore)(nil)

func (s *PostgresStore) GetDigestBatchByKey(key string) (*models.DigestBatch, error) {
	var b models.DigestBatch
	var idempotencyKey sql.NullString
	err := s.db.QueryRow(
		`SELECT id, idempotency_key, user_count, status, created_at FROM digest_batches WHERE idempotency_key = $1`,
		key,
	).Scan(&b.ID, &idempotencyKey, &b.UserCount, &b.Status, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("digest batch lookup failed: %w", err)
	}
	b.IdempotencyKey = idempotencyKey.String
	return &b, nil
}

// CreateDigestBatch enqueues one digest.weekly event per active user and
// records the batch row in the same transaction, so a crash between the two
// cannot leave enqueued events without a batch record.
func (s *PostgresStore) CreateDigestBatch(key, weekKey string) (models.DigestBatch, error) {
	now := time.Now()
	batch := models.DigestBatch{
		ID:             util.GenerateBatchID(),
		IdempotencyKey: key,
		Status:         models.DigestBatchStatusCompleted,
		CreatedAt:      now,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.DigestBatch{}, fmt.Errorf("begin digest batch failed: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, email, name, created_at, updated_at, deleted_at FROM users WHERE deleted_at IS NULL ORDER BY created_at ASC`,
	)
	if err != nil {
		return models.DigestBatch{}, fmt.Errorf("digest batch user query failed: %w", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return models.DigestBatch{}, err
	}

	for _, u := range users {
		payload, err := models.EncodePayload(models.WeeklyDigestPayload{UserID: u.ID, Email: u.Email, WeekKey: weekKey})
		if err != nil {
			return models.DigestBatch{}, err
		}
		if _, err := s.EnqueueOutboxEvent(tx, u.ID, models.EventTypeWeeklyDigest, payload); err != nil {
			return models.DigestBatch{}, err
		}
	}
	batch.UserCount = len(users)

	_, err = tx.Exec(
		`INSERT INTO digest_batches (id, idempotency_key, user_count, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		batch.ID, nilIfEmpty(key), batch.UserCount, string(batch.Status), now,
	)
	if err != nil {
		return models.DigestBatch{}, fmt.Errorf("insert digest batch failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.DigestBatch{}, fmt.Errorf("commit digest batch failed: %w", err)
	}
	slog.Debug("PostgresStore.CreateDigestBatch", "id", batch.ID, "userCount", batch.UserCount, "key_set", key != "")
	return batch, nil
}
