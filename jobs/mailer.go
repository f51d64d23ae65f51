package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Email template names.
const (
	TemplateReservationConfirmation = "reservation-confirmation"
	TemplateCheckinConfirmation     = "checkin-confirmation"
	TemplateCheckoutConfirmation    = "checkout-confirmation"
	TemplatePaymentConfirmation     = "payment-confirmation"
)

const layoutOpen = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #2c3e50;">{{.hotelName}}</h2>`

const layoutClose = `</div>`

var emailTemplates = template.Must(template.New("emails").Option("missingkey=zero").Parse(
	`{{define "` + TemplateReservationConfirmation + `"}}` + layoutOpen + `
<h3 style="color: #27ae60;">Reservation confirmed</h3>
<p>Hello {{.guestName}},</p>
<p>Your reservation has been confirmed.</p>
<p><strong>Reservation:</strong> {{.reservationId}}</p>
<p><strong>Check-in:</strong> {{.checkInDate}}</p>
<p><strong>Check-out:</strong> {{.checkOutDate}}</p>
<p>Thank you for choosing {{.hotelName}}!</p>
` + layoutClose + `{{end}}` +
		`{{define "` + TemplateCheckinConfirmation + `"}}` + layoutOpen + `
<h3 style="color: #27ae60;">Check-in completed</h3>
<p>Hello {{.guestName}},</p>
<p><strong>Reservation:</strong> {{.reservationId}}</p>
<p><strong>Room:</strong> {{.roomNumber}}</p>
<p><strong>Check-in time:</strong> {{.checkInTime}}</p>
<p>Enjoy your stay!</p>
` + layoutClose + `{{end}}` +
		`{{define "` + TemplateCheckoutConfirmation + `"}}` + layoutOpen + `
<h3 style="color: #27ae60;">Check-out completed</h3>
<p>Hello {{.guestName}},</p>
<p><strong>Reservation:</strong> {{.reservationId}}</p>
<p><strong>Total:</strong> {{.totalAmount}}</p>
<p><strong>Check-out time:</strong> {{.checkOutTime}}</p>
<p>Thank you for choosing {{.hotelName}}!</p>
` + layoutClose + `{{end}}` +
		`{{define "` + TemplatePaymentConfirmation + `"}}` + layoutOpen + `
<h3 style="color: #27ae60;">Payment processed</h3>
<p>Hello {{.guestName}},</p>
<p><strong>Reservation:</strong> {{.reservationId}}</p>
<p><strong>Amount:</strong> {{.amount}}</p>
<p><strong>Payment method:</strong> {{.paymentMethod}}</p>
<p><strong>Payment date:</strong> {{.paymentDate}}</p>
<p>Thank you for choosing {{.hotelName}}!</p>
` + layoutClose + `{{end}}`,
))

// RenderEmail renders the named template; unknown names fall back to the reservation confirmation.
func RenderEmail(name string, data map[string]any) (string, error) {
	if emailTemplates.Lookup(name) == nil {
		name = TemplateReservationConfirmation
	}
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Mailer handles notification tasks. Delivery is logged; no SMTP or SMS gateway is wired.
type Mailer struct {
	logger *slog.Logger
}

// NewMailer constructs a Mailer.
func NewMailer(logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{logger: logger}
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func (m *Mailer) HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email without recipient: %w", asynq.SkipRetry)
	}
	html, err := RenderEmail(payload.Template, payload.Data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	m.logger.InfoContext(ctx, "email delivered",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject),
		slog.String("template", payload.Template),
		slog.Int("bytes", len(html)),
	)
	return nil
}

// HandleSendSMSTask processes TaskTypeSendSMS tasks.
func (m *Mailer) HandleSendSMSTask(ctx context.Context, t *asynq.Task) error {
	var payload SendSMSPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode sms payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" || payload.Message == "" {
		return fmt.Errorf("sms without recipient or message: %w", asynq.SkipRetry)
	}
	m.logger.InfoContext(ctx, "sms delivered",
		slog.String("to", payload.To),
		slog.Int("length", len(payload.Message)),
	)
	return nil
}
