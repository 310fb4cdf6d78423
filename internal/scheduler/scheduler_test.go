package scheduler

import "testing"

func TestAddJobValidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("0 8 * * 1", func() {}); err != nil {
		t.Errorf("expected weekly schedule to be accepted: %v", err)
	}
}

func TestAddJobInvalidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("not a schedule", func() {}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if err := s.AddJob("0 8 * *", func() {}); err == nil {
		t.Error("expected error for wrong field count")
	}
}
