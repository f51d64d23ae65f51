package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/easyhotel/easyhotel/internal/events"
)

// EventPublisher publishes one domain event.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) (events.DomainEvent, error)
}

// PublishOptions defines available flags for the publish command.
type PublishOptions struct {
	Type string
	// Data is a JSON object; empty uses the sample payload of Type.
	Data       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// SampleData returns a representative payload for eventType.
func SampleData(eventType string) (map[string]any, bool) {
	switch eventType {
	case events.TypeReservationCreated:
		return map[string]any{
			"reservationId": "res_sample_001",
			"guestName":     "Sample Guest",
			"guestEmail":    "guest@example.com",
			"guestPhone":    "+15550100",
			"roomNumber":    "101",
			"checkInDate":   "2024-06-01",
			"checkOutDate":  "2024-06-03",
			"totalAmount":   240.0,
		}, true
	case events.TypeReservationCheckedIn, events.TypeReservationCheckedOut:
		return map[string]any{
			"reservationId": "res_sample_001",
			"guestName":     "Sample Guest",
			"guestEmail":    "guest@example.com",
			"roomNumber":    "101",
		}, true
	case events.TypePaymentProcessed:
		return map[string]any{
			"paymentId":     "pay_sample_001",
			"reservationId": "res_sample_001",
			"guestEmail":    "guest@example.com",
			"amount":        240.0,
			"status":        "COMPLETED",
		}, true
	}
	return nil, false
}

// PublishCommand publishes one event and prints the envelope. It returns the process exit code.
func PublishCommand(ctx context.Context, pub EventPublisher, opts PublishOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	eventType := strings.TrimSpace(opts.Type)
	if eventType == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "publish: --type is required")
		return 2
	}

	var data any
	if raw := strings.TrimSpace(opts.Data); raw != "" {
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "publish: --data must be a JSON object: %v\n", err)
			return 2
		}
		data = fields
	} else {
		sample, ok := SampleData(eventType)
		if !ok {
			_, _ = fmt.Fprintf(opts.Stderr, "publish: no sample payload for %s, pass --data\n", eventType)
			return 2
		}
		data = sample
	}

	evt, err := pub.Publish(ctx, eventType, data)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "publish: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(evt); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "publish: encode output: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "published %s (%s) to %s\n", evt.ID, evt.Type, events.TopicFor(evt.Type))
	return 0
}
