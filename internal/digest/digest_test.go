package digest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(st), st
}

func TestTriggerEnqueuesDigestEvents(t *testing.T) {
	svc, st := newTestService(t)

	if _, err := st.CreateUser(nil, "alice@example.com", "Alice"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if _, err := st.CreateUser(nil, "bob@example.com", "Bob"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	result, err := svc.Trigger("2026-W36")
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if result.UserCount != 2 {
		t.Errorf("user count = %d, want 2", result.UserCount)
	}
	if result.Idempotent {
		t.Error("first trigger should not be an idempotent replay")
	}
	if result.Message != "weekly digest enqueued" {
		t.Errorf("message = %q, want weekly digest enqueued", result.Message)
	}

	events, err := st.FetchPendingOutboxEvents(10, 3)
	if err != nil {
		t.Fatalf("failed to fetch pending events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d pending events, want 2", len(events))
	}
}

func TestTriggerIdempotentReplay(t *testing.T) {
	svc, st := newTestService(t)

	if _, err := st.CreateUser(nil, "alice@example.com", "Alice"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	first, err := svc.Trigger("2026-W36")
	if err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}

	// A later signup must not change the replayed result.
	if _, err := st.CreateUser(nil, "bob@example.com", "Bob"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	second, err := svc.Trigger("2026-W36")
	if err != nil {
		t.Fatalf("second trigger failed: %v", err)
	}
	if !second.Idempotent {
		t.Error("second trigger should be an idempotent replay")
	}
	if second.Message != "already created" {
		t.Errorf("message = %q, want already created", second.Message)
	}
	if second.UserCount != first.UserCount {
		t.Errorf("replayed user count = %d, want %d", second.UserCount, first.UserCount)
	}

	events, err := st.FetchPendingOutboxEvents(10, 3)
	if err != nil {
		t.Fatalf("failed to fetch pending events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d pending events, want 1 (replay must not enqueue)", len(events))
	}
}

func TestTriggerWithoutKeyEnqueuesEachTime(t *testing.T) {
	svc, st := newTestService(t)

	if _, err := st.CreateUser(nil, "alice@example.com", "Alice"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if _, err := svc.Trigger(""); err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
	if _, err := svc.Trigger(""); err != nil {
		t.Fatalf("second trigger failed: %v", err)
	}

	events, err := st.FetchPendingOutboxEvents(10, 3)
	if err != nil {
		t.Fatalf("failed to fetch pending events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d pending events, want 2 (no duplicate protection without a key)", len(events))
	}
}

func TestCurrentWeekKey(t *testing.T) {
	cases := []struct {
		time time.Time
		want string
	}{
		{time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC), "2026-W36"},
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), "2026-W01"},
		// Jan 1 2027 falls in the last ISO week of 2026.
		{time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), "2026-W53"},
	}
	for _, c := range cases {
		if got := CurrentWeekKey(c.time); got != c.want {
			t.Errorf("CurrentWeekKey(%s) = %q, want %q", c.time.Format("2006-01-02"), got, c.want)
		}
	}
}
