package notify

import (
	"context"
	"testing"
)

func TestLogNotifierSend(t *testing.T) {
	n := NewLogNotifier()
	if err := n.Send(context.Background(), "alice@example.com", "hello"); err != nil {
		t.Errorf("log notifier should never fail: %v", err)
	}
}

func TestRecordingNotifierCapturesMessages(t *testing.T) {
	n := NewRecordingNotifier()
	ctx := context.Background()

	if err := n.Send(ctx, "alice@example.com", "first"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := n.Send(ctx, "bob@example.com", "second"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	sent := n.Sent()
	if len(sent) != 2 {
		t.Fatalf("got %d messages, want 2", len(sent))
	}
	if sent[0].To != "alice@example.com" || sent[0].Body != "first" {
		t.Errorf("first message = %+v", sent[0])
	}
	if sent[1].To != "bob@example.com" || sent[1].Body != "second" {
		t.Errorf("second message = %+v", sent[1])
	}

	// Snapshot must not alias the internal slice.
	sent[0].To = "mutated"
	if n.Sent()[0].To != "alice@example.com" {
		t.Error("Sent() should return a copy")
	}
}
