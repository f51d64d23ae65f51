package notify

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/easyhotel/easyhotel/internal/events"
	"github.com/easyhotel/easyhotel/jobs"
)

func (d *Dispatcher) reservationCreated(ctx context.Context, _ events.DomainEvent, fields map[string]any) error {
	email, reservationID, err := required(fields)
	if err != nil {
		return err
	}
	if err := d.notifier.SendEmail(ctx, Email{
		To:       email,
		Subject:  "Reservation confirmed - " + d.hotelName,
		Template: jobs.TemplateReservationConfirmation,
		Data:     d.templateData(fields),
	}); err != nil {
		return err
	}
	phone := stringField(fields, "guestPhone")
	if phone == "" {
		return nil
	}
	msg := fmt.Sprintf("%s: reservation %s confirmed.", d.hotelName, reservationID)
	if checkIn := stringField(fields, "checkInDate"); checkIn != "" {
		msg += " Check-in: " + checkIn + "."
	}
	return d.notifier.SendSMS(ctx, SMS{To: phone, Message: msg})
}

func (d *Dispatcher) checkedIn(ctx context.Context, _ events.DomainEvent, fields map[string]any) error {
	email, _, err := required(fields)
	if err != nil {
		return err
	}
	return d.notifier.SendEmail(ctx, Email{
		To:       email,
		Subject:  "Check-in completed - " + d.hotelName,
		Template: jobs.TemplateCheckinConfirmation,
		Data:     d.templateData(fields),
	})
}

func (d *Dispatcher) checkedOut(ctx context.Context, _ events.DomainEvent, fields map[string]any) error {
	email, _, err := required(fields)
	if err != nil {
		return err
	}
	return d.notifier.SendEmail(ctx, Email{
		To:       email,
		Subject:  "Check-out completed - " + d.hotelName,
		Template: jobs.TemplateCheckoutConfirmation,
		Data:     d.templateData(fields),
	})
}

func (d *Dispatcher) paymentProcessed(ctx context.Context, _ events.DomainEvent, fields map[string]any) error {
	email, _, err := required(fields)
	if err != nil {
		return err
	}
	return d.notifier.SendEmail(ctx, Email{
		To:       email,
		Subject:  "Payment processed - " + d.hotelName,
		Template: jobs.TemplatePaymentConfirmation,
		Data:     d.templateData(fields),
	})
}

// required extracts guestEmail and reservationId.
func required(fields map[string]any) (email, reservationID string, err error) {
	email = stringField(fields, "guestEmail")
	if email == "" {
		return "", "", fmt.Errorf("%w: guestEmail", errMissingField)
	}
	reservationID = stringField(fields, "reservationId")
	if reservationID == "" {
		return "", "", fmt.Errorf("%w: reservationId", errMissingField)
	}
	return email, reservationID, nil
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func (d *Dispatcher) templateData(fields map[string]any) map[string]any {
	data := maps.Clone(fields)
	data["hotelName"] = d.hotelName
	return data
}
