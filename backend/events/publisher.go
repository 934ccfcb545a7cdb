// Package events publishes domain events for downstream consumers.
// Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	UserRegistered        = "user.registered"
	EnrollmentCreated     = "enrollment.created"
	PurchaseStatusChanged = "purchase.status_changed"
)

// Envelope is the wire format of every event.
type Envelope struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType, key string, data any) error
}

func encode(eventType, key string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
}

// LoggingPublisher writes events to the structured log. It is used when no
// broker is configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType, key string, data any) error {
	payload, err := encode(eventType, key, data)
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "published event", "event_type", eventType, "key", key, "payload", string(payload))
	return nil
}
