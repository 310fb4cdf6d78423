package store

import (
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
)

func TestEnqueueOutboxEvent(t *testing.T) {
	st := newTestStore(t)

	event, err := st.EnqueueOutboxEvent(nil, "usr_1", models.EventTypeUserCreated, `{"user_id":"usr_1"}`)
	if err != nil {
		t.Fatalf("failed to enqueue event: %v", err)
	}
	if event.ID == "" {
		t.Error("expected generated event ID")
	}

	got, err := st.GetOutboxEvent(event.ID)
	if err != nil {
		t.Fatalf("failed to get event: %v", err)
	}
	if got == nil {
		t.Fatal("expected event to exist")
	}
	if got.Processed {
		t.Error("new event should not be processed")
	}
	if got.Attempts != 0 {
		t.Errorf("new event attempts = %d, want 0", got.Attempts)
	}
	if got.EventType != models.EventTypeUserCreated {
		t.Errorf("event type = %q, want %q", got.EventType, models.EventTypeUserCreated)
	}
	if got.AggregateID != "usr_1" {
		t.Errorf("aggregate ID = %q, want usr_1", got.AggregateID)
	}
}

func TestEnqueueOutboxEventRollsBackWithCallerTransaction(t *testing.T) {
	st := newTestStore(t)

	tx, err := st.Begin()
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	event, err := st.EnqueueOutboxEvent(tx, "usr_1", models.EventTypeUserCreated, "{}")
	if err != nil {
		t.Fatalf("failed to enqueue inside transaction: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("failed to roll back transaction: %v", err)
	}

	got, err := st.GetOutboxEvent(event.ID)
	if err != nil {
		t.Fatalf("failed to get event: %v", err)
	}
	if got != nil {
		t.Error("event should not persist after rollback")
	}
}

func TestFetchPendingOutboxEventsOrderAndLimit(t *testing.T) {
	st := newTestStore(t)

	var ids []string
	for i := 0; i < 5; i++ {
		e, err := st.EnqueueOutboxEvent(nil, "usr_1", models.EventTypeUserCreated, "{}")
		if err != nil {
			t.Fatalf("failed to enqueue event %d: %v", i, err)
		}
		ids = append(ids, e.ID)
		time.Sleep(2 * time.Millisecond)
	}

	events, err := st.FetchPendingOutboxEvents(3, 3)
	if err != nil {
		t.Fatalf("failed to fetch pending events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("fetched %d events, want 3", len(events))
	}
	for i, e := range events {
		if e.ID != ids[i] {
			t.Errorf("event %d = %s, want %s (oldest first)", i, e.ID, ids[i])
		}
	}
}

func TestFetchPendingOutboxEventsSkipsProcessedAndExhausted(t *testing.T) {
	st := newTestStore(t)

	completed, _ := st.EnqueueOutboxEvent(nil, "usr_1", models.EventTypeUserCreated, "{}")
	if err := st.CompleteOutboxEvent(completed.ID, nil); err != nil {
		t.Fatalf("failed to complete event: %v", err)
	}

	exhausted, _ := st.EnqueueOutboxEvent(nil, "usr_2", models.EventTypeUserCreated, "{}")
	for i := 0; i < 3; i++ {
		if err := st.RecordOutboxFailure(exhausted.ID, "boom"); err != nil {
			t.Fatalf("failed to record failure: %v", err)
		}
	}

	pending, _ := st.EnqueueOutboxEvent(nil, "usr_3", models.EventTypeUserCreated, "{}")

	events, err := st.FetchPendingOutboxEvents(10, 3)
	if err != nil {
		t.Fatalf("failed to fetch pending events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("fetched %d events, want 1", len(events))
	}
	if events[0].ID != pending.ID {
		t.Errorf("fetched event %s, want %s", events[0].ID, pending.ID)
	}
}

func TestCompleteOutboxEventWritesAuditAtomically(t *testing.T) {
	st := newTestStore(t)

	event, _ := st.EnqueueOutboxEvent(nil, "usr_1", models.EventTypeUserCreated, "{}")
	sideEffect := &models.SideEffect{
		Actor:    "system",
		Action:   "user.welcome_sent",
		TargetID: "usr_1",
		Metadata: map[string]string{"email": "alice@example.com"},
	}
	if err := st.CompleteOutboxEvent(event.ID, sideEffect); err != nil {
		t.Fatalf("failed to complete event: %v", err)
	}

	got, err := st.GetOutboxEvent(event.ID)
	if err != nil {
		t.Fatalf("failed to get event: %v", err)
	}
	if !got.Processed {
		t.Error("completed event should be processed")
	}
	if got.ProcessedAt == nil {
		t.Error("completed event should have a processed_at timestamp")
	}
	if got.Attempts != 1 {
		t.Errorf("completed event attempts = %d, want 1", got.Attempts)
	}

	logs, err := st.ListAuditLogs(10)
	if err != nil {
		t.Fatalf("failed to list audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d audit logs, want 1", len(logs))
	}
	if logs[0].Action != "user.welcome_sent" {
		t.Errorf("audit action = %q, want user.welcome_sent", logs[0].Action)
	}
	if logs[0].TargetID != "usr_1" {
		t.Errorf("audit target = %q, want usr_1", logs[0].TargetID)
	}
	if logs[0].Metadata["email"] != "alice@example.com" {
		t.Errorf("audit metadata email = %q, want alice@example.com", logs[0].Metadata["email"])
	}
}

func TestCompleteOutboxEventWithoutSideEffect(t *testing.T) {
	st := newTestStore(t)

	event, _ := st.EnqueueOutboxEvent(nil, "usr_1", models.EventTypeUserCreated, "{}")
	if err := st.CompleteOutboxEvent(event.ID, nil); err != nil {
		t.Fatalf("failed to complete event: %v", err)
	}

	logs, err := st.ListAuditLogs(10)
	if err != nil {
		t.Fatalf("failed to list audit logs: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("got %d audit logs, want 0", len(logs))
	}
}

func TestAbandonOutboxEvent(t *testing.T) {
	st := newTestStore(t)

	event, _ := st.EnqueueOutboxEvent(nil, "usr_1", "unknown.type", "{}")
	reason := "No handler registered for event type: unknown.type"
	if err := st.AbandonOutboxEvent(event.ID, reason); err != nil {
		t.Fatalf("failed to abandon event: %v", err)
	}

	got, _ := st.GetOutboxEvent(event.ID)
	if !got.Processed {
		t.Error("abandoned event should be terminally processed")
	}
	if got.Attempts != 0 {
		t.Errorf("abandoned event attempts = %d, want 0", got.Attempts)
	}
	if got.LastError != reason {
		t.Errorf("abandoned event last_error = %q, want %q", got.LastError, reason)
	}
}

func TestRecordOutboxFailureKeepsEventPending(t *testing.T) {
	st := newTestStore(t)

	event, _ := st.EnqueueOutboxEvent(nil, "usr_1", models.EventTypeUserCreated, "{}")
	if err := st.RecordOutboxFailure(event.ID, "smtp unreachable"); err != nil {
		t.Fatalf("failed to record failure: %v", err)
	}

	got, _ := st.GetOutboxEvent(event.ID)
	if got.Processed {
		t.Error("failed event should stay pending")
	}
	if got.Attempts != 1 {
		t.Errorf("failed event attempts = %d, want 1", got.Attempts)
	}
	if got.LastError != "smtp unreachable" {
		t.Errorf("failed event last_error = %q, want smtp unreachable", got.LastError)
	}

	events, err := st.FetchPendingOutboxEvents(10, 3)
	if err != nil {
		t.Fatalf("failed to fetch pending events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("fetched %d events, want 1", len(events))
	}
}

func TestExhaustOutboxEvent(t *testing.T) {
	st := newTestStore(t)

	event, _ := st.EnqueueOutboxEvent(nil, "usr_1", models.EventTypeUserCreated, "{}")
	st.RecordOutboxFailure(event.ID, "boom")
	st.RecordOutboxFailure(event.ID, "boom")
	errMsg := "Max retries (3) exceeded: boom"
	if err := st.ExhaustOutboxEvent(event.ID, errMsg); err != nil {
		t.Fatalf("failed to exhaust event: %v", err)
	}

	got, _ := st.GetOutboxEvent(event.ID)
	if !got.Processed {
		t.Error("exhausted event should be terminally processed")
	}
	if got.Attempts != 3 {
		t.Errorf("exhausted event attempts = %d, want 3", got.Attempts)
	}
	if got.LastError != errMsg {
		t.Errorf("exhausted event last_error = %q, want %q", got.LastError, errMsg)
	}
}

func TestGetOutboxEventNotFound(t *testing.T) {
	st := newTestStore(t)

	got, err := st.GetOutboxEvent("evt_missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown event ID")
	}
}

func TestListOutboxEventsNewestFirst(t *testing.T) {
	st := newTestStore(t)

	first, _ := st.EnqueueOutboxEvent(nil, "usr_1", models.EventTypeUserCreated, "{}")
	time.Sleep(2 * time.Millisecond)
	second, _ := st.EnqueueOutboxEvent(nil, "usr_2", models.EventTypeUserCreated, "{}")

	events, err := st.ListOutboxEvents(10)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID != second.ID || events[1].ID != first.ID {
		t.Error("expected newest event first")
	}
}
