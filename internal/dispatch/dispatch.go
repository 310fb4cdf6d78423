// Package dispatch provides the outbox dispatcher: a polling loop that drains
// the durable event queue and executes registered handlers with bounded
// retries.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/store"
)

// Default dispatcher configuration
const (
	// DefaultPollInterval is the default delay between poll cycles.
	DefaultPollInterval = 5 * time.Second
	// DefaultBatchSize is the default maximum number of events fetched per poll cycle.
	DefaultBatchSize = 10
	// DefaultMaxRetries is the default number of processing attempts before an event is given up on.
	DefaultMaxRetries = 3
)

// Handler executes the side effect for one event. It receives the event's
// payload text and returns optional audit data, which the dispatcher persists
// in the same commit that marks the event processed. Handlers must be
// idempotent or cheaply retryable: delivery is at-least-once.
type Handler func(ctx context.Context, payload string) (*models.SideEffect, error)

// Registry maps event-type tags to handlers. It is built at startup and
// passed into NewDispatcher, so tests can inject fakes.
type Registry map[string]Handler

// Config holds dispatcher tuning knobs. Zero values fall back to defaults.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
}

// Dispatcher periodically fetches pending outbox events in creation order and
// executes them sequentially through the registry.
//
// A single Dispatcher instance must be the only active one against a given
// database: the fetch query does not lease rows, so concurrent instances
// would double-process events.
type Dispatcher struct {
	repo         store.OutboxRepo
	registry     Registry
	pollInterval time.Duration
	batchSize    int
	maxRetries   int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a new Dispatcher over the given outbox repository and
// handler registry.
func NewDispatcher(repo store.OutboxRepo, registry Registry, cfg Config) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Dispatcher{
		repo:         repo,
		registry:     registry,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		maxRetries:   cfg.MaxRetries,
	}
}

// Run executes the polling loop until the context is cancelled. The first
// poll happens immediately, so events enqueued before startup are picked up
// without waiting a full interval.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher.Run: starting outbox dispatcher",
		"pollInterval", d.pollInterval, "batchSize", d.batchSize, "maxRetries", d.maxRetries)

	d.poll(ctx)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher.Run: stopping")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

// Start launches the polling loop in a background goroutine. Use Stop to
// cancel it.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		slog.Warn("Dispatcher.Start: already running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		d.Run(runCtx)
	}(d.done)
}

// Stop cancels the polling loop and waits for it to return. It does not
// interrupt an in-flight poll cycle: each event's state transition is
// independently atomic, so remaining fetched-but-unprocessed events stay
// pending and are picked up on the next start.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// poll runs one cycle: fetch a batch of pending events and process them
// sequentially. A fetch failure is logged and skipped; it never kills the
// loop.
func (d *Dispatcher) poll(ctx context.Context) {
	events, err := d.repo.FetchPendingOutboxEvents(d.batchSize, d.maxRetries)
	if err != nil {
		slog.Error("Dispatcher.poll: fetch failed", "error", err)
		return
	}

	for _, event := range events {
		d.processEvent(ctx, event)
	}
}

// processEvent executes a single event through the registry and persists the
// outcome. Failures here never propagate; the loop always proceeds to the
// next event.
func (d *Dispatcher) processEvent(ctx context.Context, event models.OutboxEvent) {
	handler, ok := d.registry[event.EventType]
	if !ok {
		// One-pass abandonment: nobody claims this type, so retrying forever
		// would be pointless.
		reason := fmt.Sprintf("No handler registered for event type: %s", event.EventType)
		slog.Warn("Dispatcher.processEvent: no handler for event type", "id", event.ID, "eventType", event.EventType)
		if err := d.repo.AbandonOutboxEvent(event.ID, reason); err != nil {
			slog.Error("Dispatcher.processEvent: abandon event error", "id", event.ID, "error", err)
		}
		return
	}

	slog.Debug("Dispatcher.processEvent: executing handler", "id", event.ID, "eventType", event.EventType, "attempt", event.Attempts+1)
	sideEffect, err := handler(ctx, event.Payload)
	if err != nil {
		d.recordFailure(event, err)
		return
	}

	if err := d.repo.CompleteOutboxEvent(event.ID, sideEffect); err != nil {
		slog.Error("Dispatcher.processEvent: complete event error", "id", event.ID, "error", err)
		return
	}
	slog.Debug("Dispatcher.processEvent: event processed", "id", event.ID, "eventType", event.EventType)
}

func (d *Dispatcher) recordFailure(event models.OutboxEvent, handlerErr error) {
	newAttempts := event.Attempts + 1
	if newAttempts >= d.maxRetries {
		msg := fmt.Sprintf("Max retries (%d) exceeded: %s", d.maxRetries, handlerErr.Error())
		slog.Error("Dispatcher.recordFailure: giving up on event", "id", event.ID, "eventType", event.EventType, "attempts", newAttempts, "error", handlerErr)
		if err := d.repo.ExhaustOutboxEvent(event.ID, msg); err != nil {
			slog.Error("Dispatcher.recordFailure: exhaust event error", "id", event.ID, "error", err)
		}
		return
	}

	slog.Warn("Dispatcher.recordFailure: handler failed, will retry", "id", event.ID, "eventType", event.EventType, "attempts", newAttempts, "error", handlerErr)
	if err := d.repo.RecordOutboxFailure(event.ID, handlerErr.Error()); err != nil {
		slog.Error("Dispatcher.recordFailure: record failure error", "id", event.ID, "error", err)
	}
}
