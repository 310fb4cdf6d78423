package store

import (
	"testing"

	"github.com/pulseboard/pulseboard/internal/models"
)

func TestCreateDigestBatchEnqueuesPerActiveUser(t *testing.T) {
	st := newTestStore(t)

	alice, err := st.CreateUser(nil, "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	bob, err := st.CreateUser(nil, "bob@example.com", "Bob")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	carol, err := st.CreateUser(nil, "carol@example.com", "Carol")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := st.SoftDeleteUser(carol.ID); err != nil {
		t.Fatalf("failed to soft delete user: %v", err)
	}

	batch, err := st.CreateDigestBatch("2026-W36", "2026-W36")
	if err != nil {
		t.Fatalf("failed to create digest batch: %v", err)
	}
	if batch.UserCount != 2 {
		t.Errorf("batch user count = %d, want 2 (soft-deleted excluded)", batch.UserCount)
	}
	if batch.Status != models.DigestBatchStatusCompleted {
		t.Errorf("batch status = %q, want %q", batch.Status, models.DigestBatchStatusCompleted)
	}

	events, err := st.FetchPendingOutboxEvents(10, 3)
	if err != nil {
		t.Fatalf("failed to fetch pending events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d pending events, want 2", len(events))
	}
	targets := map[string]bool{}
	for _, e := range events {
		if e.EventType != models.EventTypeWeeklyDigest {
			t.Errorf("event type = %q, want %q", e.EventType, models.EventTypeWeeklyDigest)
		}
		payload, err := models.DecodeWeeklyDigestPayload(e.Payload)
		if err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload.WeekKey != "2026-W36" {
			t.Errorf("payload week key = %q, want 2026-W36", payload.WeekKey)
		}
		targets[payload.UserID] = true
	}
	if !targets[alice.ID] || !targets[bob.ID] {
		t.Error("expected digest events for both active users")
	}
	if targets[carol.ID] {
		t.Error("soft-deleted user should not receive a digest event")
	}
}

func TestCreateDigestBatchDuplicateKeyRollsBack(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.CreateUser(nil, "alice@example.com", "Alice"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if _, err := st.CreateDigestBatch("2026-W36", "2026-W36"); err != nil {
		t.Fatalf("failed to create first batch: %v", err)
	}
	if _, err := st.CreateDigestBatch("2026-W36", "2026-W36"); err == nil {
		t.Fatal("expected unique key violation for duplicate batch")
	}

	// The duplicate attempt must not leave enqueued events behind.
	events, err := st.FetchPendingOutboxEvents(10, 3)
	if err != nil {
		t.Fatalf("failed to fetch pending events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d pending events, want 1", len(events))
	}
}

func TestGetDigestBatchByKey(t *testing.T) {
	st := newTestStore(t)

	created, err := st.CreateDigestBatch("2026-W35", "2026-W35")
	if err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}

	got, err := st.GetDigestBatchByKey("2026-W35")
	if err != nil {
		t.Fatalf("failed to get batch: %v", err)
	}
	if got == nil {
		t.Fatal("expected batch to exist")
	}
	if got.ID != created.ID {
		t.Errorf("batch ID = %s, want %s", got.ID, created.ID)
	}
	if got.IdempotencyKey != "2026-W35" {
		t.Errorf("idempotency key = %q, want 2026-W35", got.IdempotencyKey)
	}
	if got.UserCount != 0 {
		t.Errorf("user count = %d, want 0", got.UserCount)
	}
}

func TestGetDigestBatchByKeyNotFound(t *testing.T) {
	st := newTestStore(t)

	got, err := st.GetDigestBatchByKey("2026-W01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown key")
	}
}
