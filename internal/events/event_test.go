package events

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	evt, err := Decode([]byte(`{"id":"evt_1","type":"reservation.created","timestamp":"2024-03-01T10:00:00Z","data":{"reservationId":"r-1","guestEmail":"ana@example.com"},"source":"reservations-service"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeReservationCreated, evt.Type)
	assert.Equal(t, "reservations-service", evt.Source)

	fields, err := evt.Fields()
	require.NoError(t, err)
	assert.Equal(t, "r-1", fields["reservationId"])
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for name, payload := range map[string]string{
		"empty":      ``,
		"not json":   `reservation.created`,
		"no type":    `{"id":"evt_1","data":{}}`,
		"wrong type": `{"type":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestFieldsWithoutData(t *testing.T) {
	for name, payload := range map[string]string{
		"null":   `{"type":"payment.processed","data":null}`,
		"absent": `{"type":"payment.processed"}`,
	} {
		t.Run(name, func(t *testing.T) {
			evt, err := Decode([]byte(payload))
			require.NoError(t, err)
			_, err = evt.Fields()
			assert.ErrorIs(t, err, ErrNoData)
		})
	}

	evt, err := Decode([]byte(`{"type":"payment.processed","data":[1,2]}`))
	require.NoError(t, err)
	_, err = evt.Fields()
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, TopicReservationCreated, TopicFor(TypeReservationCreated))
	assert.Equal(t, TopicPaymentProcessed, TopicFor(TypePaymentProcessed))
	assert.Equal(t, "room.cleaned", TopicFor("room.cleaned"))
	assert.Len(t, KnownTopics(), 4)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &KafkaPublisher{writer: w, source: "eventctl", now: func() time.Time { return now }}

	evt, err := p.Publish(context.Background(), TypeReservationCheckedIn, map[string]string{"reservationId": "r-9"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, TopicReservationCheckedIn, msg.Topic)
	assert.Equal(t, evt.ID, string(msg.Key))
	assert.Equal(t, now, msg.Time)

	var sent DomainEvent
	require.NoError(t, json.Unmarshal(msg.Value, &sent))
	assert.Equal(t, "eventctl", sent.Source)
	assert.JSONEq(t, `{"reservationId":"r-9"}`, string(sent.Data))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, now: time.Now}

	_, err := p.Publish(context.Background(), TypePaymentProcessed, map[string]string{})
	assert.ErrorIs(t, err, boom)

	_, err = p.Publish(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestNewKafkaSubscriberValidates(t *testing.T) {
	_, err := NewKafkaSubscriber(SubscriberConfig{GroupID: "g", Topics: []string{"t"}})
	assert.Error(t, err)
	_, err = NewKafkaSubscriber(SubscriberConfig{Brokers: []string{"kafka:9092"}, Topics: []string{"t"}})
	assert.Error(t, err)
	_, err = NewKafkaSubscriber(SubscriberConfig{Brokers: []string{"kafka:9092"}, GroupID: "g"})
	assert.Error(t, err)
}

func TestSubscribeFailsWhenNoBrokerReachable(t *testing.T) {
	s, err := NewKafkaSubscriber(SubscriberConfig{
		Brokers: []string{"kafka-a:9092", "kafka-b:9092"},
		GroupID: "notifications-group",
		Topics:  KnownTopics(),
	})
	require.NoError(t, err)

	var dialed []string
	s.dial = func(_ context.Context, _, address string) (net.Conn, error) {
		dialed = append(dialed, address)
		return nil, errors.New("connection refused")
	}

	_, err = s.Subscribe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, []string{"kafka-a:9092", "kafka-b:9092"}, dialed)
}
