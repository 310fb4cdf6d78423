// Package digest implements the weekly digest batch trigger and its
// idempotency guard.
package digest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/store"
)

// TriggerResult is returned to the caller of a digest trigger.
type TriggerResult struct {
	Message        string                   `json:"message"`
	UserCount      int                      `json:"user_count"`
	IdempotencyKey string                   `json:"idempotency_key,omitempty"`
	Status         models.DigestBatchStatus `json:"status,omitempty"`
	Idempotent     bool                     `json:"idempotent,omitempty"`
}

// Service runs digest batch triggers against the store.
type Service struct {
	store store.Store
}

// NewService creates a digest trigger service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Trigger enqueues one digest.weekly event per active user. A non-empty
// idempotencyKey gates repeat execution: if a batch was already recorded for
// the key, its cached result is returned and nothing is enqueued. An empty
// key means no duplicate protection, and repeated calls will enqueue
// duplicate events.
func (s *Service) Trigger(idempotencyKey string) (*TriggerResult, error) {
	if idempotencyKey != "" {
		existing, err := s.store.GetDigestBatchByKey(idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup failed: %w", err)
		}
		if existing != nil {
			slog.Info("Digest.Trigger: idempotent replay", "key", idempotencyKey, "batchID", existing.ID)
			return &TriggerResult{
				Message:    "already created",
				UserCount:  existing.UserCount,
				Status:     existing.Status,
				Idempotent: true,
			}, nil
		}
	}

	weekKey := idempotencyKey
	if weekKey == "" {
		weekKey = CurrentWeekKey(time.Now())
	}

	batch, err := s.store.CreateDigestBatch(idempotencyKey, weekKey)
	if err != nil {
		return nil, fmt.Errorf("digest batch creation failed: %w", err)
	}

	slog.Info("Digest.Trigger: batch created", "batchID", batch.ID, "userCount", batch.UserCount, "key_set", idempotencyKey != "")
	return &TriggerResult{
		Message:        "weekly digest enqueued",
		UserCount:      batch.UserCount,
		IdempotencyKey: idempotencyKey,
	}, nil
}

// CurrentWeekKey returns the ISO week identifier for t, e.g. "2026-W36".
// The scheduler uses it as the idempotency key so a restart inside the same
// week cannot double-enqueue the digest.
func CurrentWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
