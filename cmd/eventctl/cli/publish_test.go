package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyhotel/easyhotel/internal/events"
)

type stubPublisher struct {
	eventType string
	data      any
	err       error
}

func (s *stubPublisher) Publish(ctx context.Context, eventType string, data any) (events.DomainEvent, error) {
	s.eventType = eventType
	s.data = data
	if s.err != nil {
		return events.DomainEvent{}, s.err
	}
	return events.NewEvent(eventType, "eventctl", data, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
}

func TestPublishCommandUsesSamplePayload(t *testing.T) {
	pub := &stubPublisher{}
	var stdout, stderr bytes.Buffer
	code := PublishCommand(context.Background(), pub, PublishOptions{
		Type:   events.TypeReservationCreated,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, events.TypeReservationCreated, pub.eventType)
	fields, ok := pub.data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "guest@example.com", fields["guestEmail"])
	assert.Contains(t, stdout.String(), events.TopicReservationCreated)
}

func TestPublishCommandJSONOutput(t *testing.T) {
	pub := &stubPublisher{}
	var stdout bytes.Buffer
	code := PublishCommand(context.Background(), pub, PublishOptions{
		Type:       "room.cleaned",
		Data:       `{"roomNumber":"204"}`,
		JSONOutput: true,
		Stdout:     &stdout,
		Stderr:     &bytes.Buffer{},
	})
	require.Equal(t, 0, code)

	var evt events.DomainEvent
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &evt))
	assert.Equal(t, "room.cleaned", evt.Type)
	assert.Equal(t, "eventctl", evt.Source)
	assert.JSONEq(t, `{"roomNumber":"204"}`, string(evt.Data))
}

func TestPublishCommandRejectsBadInput(t *testing.T) {
	cases := map[string]PublishOptions{
		"missing type":        {},
		"data not an object":  {Type: events.TypePaymentProcessed, Data: `[1,2]`},
		"unknown sample type": {Type: "room.cleaned"},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			var stderr bytes.Buffer
			opts.Stdout = &bytes.Buffer{}
			opts.Stderr = &stderr
			pub := &stubPublisher{}
			assert.Equal(t, 2, PublishCommand(context.Background(), pub, opts))
			assert.NotEmpty(t, stderr.String())
			assert.Empty(t, pub.eventType)
		})
	}
}

func TestPublishCommandReportsBrokerFailure(t *testing.T) {
	var stderr bytes.Buffer
	code := PublishCommand(context.Background(), &stubPublisher{err: errors.New("broker down")}, PublishOptions{
		Type:   events.TypeReservationCheckedIn,
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "broker down")
}

func TestSampleDataCoversKnownTypes(t *testing.T) {
	for _, typ := range []string{
		events.TypeReservationCreated,
		events.TypeReservationCheckedIn,
		events.TypeReservationCheckedOut,
		events.TypePaymentProcessed,
	} {
		data, ok := SampleData(typ)
		assert.True(t, ok, typ)
		assert.Equal(t, "guest@example.com", data["guestEmail"], typ)
	}
}
