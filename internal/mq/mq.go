package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/expensetracker/apiserver/types"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

const (
	attrEventType = "event_type"
	attrUserID    = "user_id"

	publishTimeout = 5 * time.Second
)

// Events publishes domain events as JSON on a single channel.
type Events struct {
	backend Backend
	channel string
	logger  *slog.Logger
}

// NewEvents constructs an Events publisher for the provided backend.
func NewEvents(backend Backend, channel string, logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}
	return &Events{
		backend: backend,
		channel: channel,
		logger:  logger.With("component", "events"),
	}
}

// Publish sends event to the channel. Failures are logged, never returned:
// the write that produced the event has already been committed.
func (e *Events) Publish(ctx context.Context, event types.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode event failed", "type", event.Type, "error", err)
		return
	}

	// Detach from request cancellation so a client hang-up does not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	attrs := map[string]string{
		attrEventType: event.Type,
		attrUserID:    fmt.Sprint(event.UserID),
	}
	if _, err := e.backend.Publish(ctx, e.channel, data, attrs); err != nil {
		e.logger.ErrorContext(ctx, "publish event failed", "type", event.Type, "channel", e.channel, "error", err)
	}
}

// Tail subscribes to the channel and decodes every message into an Event.
// Messages that are not valid events are acknowledged and skipped.
func (e *Events) Tail(ctx context.Context, handler func(ctx context.Context, event types.Event) error) error {
	return e.backend.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		var event types.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			e.logger.WarnContext(ctx, "skipping malformed event", "message_id", msg.ID, "error", err)
			return nil
		}
		return handler(ctx, event)
	})
}

// Close closes the underlying backend.
func (e *Events) Close() error {
	return e.backend.Close()
}
