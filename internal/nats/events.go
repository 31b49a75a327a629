package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flightfinder-eu/flightbot/internal/model"
)

// EventSubjectPrefix is the subject prefix for finished search events.
const EventSubjectPrefix = "flights.events"

// Publisher is the part of *nats.Conn used to publish events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EventPublisher publishes search events as JSON on flights.events.<outcome>.
type EventPublisher struct {
	conn Publisher
}

// NewEventPublisher creates a new event publisher on the client's connection.
func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{conn: client.Conn()}
}

// EventSubject returns the subject for an outcome.
func EventSubject(outcome model.Outcome) string {
	if outcome == "" {
		outcome = "unknown"
	}
	return EventSubjectPrefix + "." + string(outcome)
}

// PublishSearchEvent publishes one event. Delivery is fire-and-forget.
func (p *EventPublisher) PublishSearchEvent(_ context.Context, event model.SearchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(EventSubject(event.Outcome), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
