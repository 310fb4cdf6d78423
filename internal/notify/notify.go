// Package notify provides pluggable message delivery for event handlers.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Notifier defines a pluggable message delivery abstraction. Implementations
// must be safe for concurrent use.
type Notifier interface {
	// Send delivers a message to a recipient address (email or phone number,
	// depending on the implementation).
	Send(ctx context.Context, to string, body string) error
}

// LogNotifier writes notifications to the process log instead of delivering
// them. Used when no delivery credentials are configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, to string, body string) error {
	slog.Info("LogNotifier.Send: notification (delivery disabled)", "to", to, "body", body)
	return nil
}

// RecordingNotifier captures sent messages for tests.
type RecordingNotifier struct {
	mu       sync.Mutex
	Messages []SentMessage
}

// SentMessage is one captured notification.
type SentMessage struct {
	To   string
	Body string
}

// NewRecordingNotifier creates an empty recording notifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Send(ctx context.Context, to string, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a snapshot of the captured messages.
func (n *RecordingNotifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SentMessage, len(n.Messages))
	copy(out, n.Messages)
	return out
}
