package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gatekeeper/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const sourceService = "gatekeeper"

// MessagePublisher is the transport the forwarder writes to
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventEnvelope wraps every forwarded event
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSEventForwarder republishes bus events to NATS
type NATSEventForwarder struct {
	publisher MessagePublisher
	now       func() time.Time
}

// NewNATSEventForwarder creates a forwarder writing to publisher
func NewNATSEventForwarder(publisher MessagePublisher) *NATSEventForwarder {
	return &NATSEventForwarder{
		publisher: publisher,
		now:       time.Now,
	}
}

// SubjectFor maps an event to its NATS subject
func SubjectFor(eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", EventSubjectPrefix, eventType)
}

// Register subscribes the forwarder to every event type on the bus
func (f *NATSEventForwarder) Register(bus *events.Bus) {
	bus.SubscribeAll(f.handle)
	log.Info("NATS event forwarding enabled")
}

func (f *NATSEventForwarder) handle(ctx context.Context, event events.Event) {
	if err := f.Forward(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to forward event to NATS")
	}
}

// Forward wraps the event in an envelope and publishes it
func (f *NATSEventForwarder) Forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     f.now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := SubjectFor(event.Type())
	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event to NATS")
	return nil
}
