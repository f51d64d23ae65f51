// Package events defines hotel domain events and their Kafka transport.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the reservations and payments services.
const (
	TypeReservationCreated    = "reservation.created"
	TypeReservationCheckedIn  = "reservation.checked-in"
	TypeReservationCheckedOut = "reservation.checked-out"
	TypePaymentProcessed      = "payment.processed"
)

// Topics carrying each event type.
const (
	TopicReservationCreated    = "hotel.reservations.created"
	TopicReservationCheckedIn  = "hotel.reservations.checked-in"
	TopicReservationCheckedOut = "hotel.reservations.checked-out"
	TopicPaymentProcessed      = "hotel.payments.processed"
)

var topicByType = map[string]string{
	TypeReservationCreated:    TopicReservationCreated,
	TypeReservationCheckedIn:  TopicReservationCheckedIn,
	TypeReservationCheckedOut: TopicReservationCheckedOut,
	TypePaymentProcessed:      TopicPaymentProcessed,
}

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrNoData         = errors.New("event carries no data")
)

// DomainEvent is the wire envelope shared by every producer.
type DomainEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Source    string          `json:"source"`
}

// TopicFor returns the topic of eventType; unknown types publish to a topic of the same name.
func TopicFor(eventType string) string {
	if topic, ok := topicByType[eventType]; ok {
		return topic
	}
	return eventType
}

// KnownTopics lists every topic carrying a known event type.
func KnownTopics() []string {
	return []string{
		TopicReservationCreated,
		TopicReservationCheckedIn,
		TopicReservationCheckedOut,
		TopicPaymentProcessed,
	}
}

// NewEvent wraps data in an envelope with a fresh id and timestamp.
func NewEvent(eventType, source string, data any, now time.Time) (DomainEvent, error) {
	if eventType == "" {
		return DomainEvent{}, fmt.Errorf("%w: type required", ErrMalformedEvent)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("encode event data: %w", err)
	}
	return DomainEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		Timestamp: now.UTC(),
		Data:      raw,
		Source:    source,
	}, nil
}

// Decode parses a message payload into an envelope. An empty payload or missing type is malformed.
func Decode(payload []byte) (DomainEvent, error) {
	if len(payload) == 0 {
		return DomainEvent{}, fmt.Errorf("%w: empty payload", ErrMalformedEvent)
	}
	var evt DomainEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return DomainEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.Type == "" {
		return DomainEvent{}, fmt.Errorf("%w: type missing", ErrMalformedEvent)
	}
	return evt, nil
}

// Fields decodes Data as a JSON object. Absent or null data yields ErrNoData.
func (e DomainEvent) Fields() (map[string]any, error) {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil, ErrNoData
	}
	var fields map[string]any
	if err := json.Unmarshal(e.Data, &fields); err != nil {
		return nil, fmt.Errorf("%w: data is not an object: %v", ErrMalformedEvent, err)
	}
	if fields == nil {
		return nil, ErrNoData
	}
	return fields, nil
}
