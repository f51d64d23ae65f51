// Package notify turns hotel domain events into guest notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/easyhotel/easyhotel/internal/svcclient"
	"github.com/easyhotel/easyhotel/jobs"
)

// Email is a templated message to one guest.
type Email struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// SMS is a text message to one guest.
type SMS struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Notifier delivers guest notifications.
type Notifier interface {
	SendEmail(ctx context.Context, email Email) error
	SendSMS(ctx context.Context, sms SMS) error
}

// Modes selecting a Notifier implementation.
const (
	ModeQueue = "queue"
	ModePeer  = "peer"
	ModeLog   = "log"
)

// Enqueuer submits notification tasks; *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
	EnqueueSendSMS(ctx context.Context, payload jobs.SendSMSPayload) (*asynq.TaskInfo, error)
}

// QueueNotifier hands notifications to the background worker.
type QueueNotifier struct {
	queue Enqueuer
}

// NewQueueNotifier constructs a QueueNotifier.
func NewQueueNotifier(queue Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

// SendEmail enqueues a notify:email task.
func (n *QueueNotifier) SendEmail(ctx context.Context, email Email) error {
	_, err := n.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:       email.To,
		Subject:  email.Subject,
		Template: email.Template,
		Data:     email.Data,
	})
	if err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// SendSMS enqueues a notify:sms task.
func (n *QueueNotifier) SendSMS(ctx context.Context, sms SMS) error {
	_, err := n.queue.EnqueueSendSMS(ctx, jobs.SendSMSPayload{To: sms.To, Message: sms.Message})
	if err != nil {
		return fmt.Errorf("enqueue sms: %w", err)
	}
	return nil
}

// PeerNotifier forwards notifications to the notifications service.
type PeerNotifier struct {
	client *svcclient.NotificationsClient
}

// NewPeerNotifier constructs a PeerNotifier.
func NewPeerNotifier(client *svcclient.NotificationsClient) *PeerNotifier {
	return &PeerNotifier{client: client}
}

// SendEmail posts the email to the notifications service.
func (n *PeerNotifier) SendEmail(ctx context.Context, email Email) error {
	return resultErr(n.client.SendEmail(ctx, email))
}

// SendSMS posts the SMS to the notifications service.
func (n *PeerNotifier) SendSMS(ctx context.Context, sms SMS) error {
	return resultErr(n.client.SendSMS(ctx, sms))
}

func resultErr(res svcclient.Result) error {
	if res.Success {
		return nil
	}
	return fmt.Errorf("notifications service: status %d: %s", res.Status, res.Error)
}

// LogNotifier only logs what would be sent.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendEmail logs the email.
func (n *LogNotifier) SendEmail(ctx context.Context, email Email) error {
	n.logger.InfoContext(ctx, "email notification (log only)",
		slog.String("to", email.To),
		slog.String("template", email.Template),
	)
	return nil
}

// SendSMS logs the SMS.
func (n *LogNotifier) SendSMS(ctx context.Context, sms SMS) error {
	n.logger.InfoContext(ctx, "sms notification (log only)", slog.String("to", sms.To))
	return nil
}

// Select returns the Notifier for mode.
func Select(mode string, queue Enqueuer, peer *svcclient.NotificationsClient, logger *slog.Logger) (Notifier, error) {
	switch mode {
	case ModeQueue, "":
		if queue == nil {
			return nil, errors.New("notify: queue mode requires a job client")
		}
		return NewQueueNotifier(queue), nil
	case ModePeer:
		if peer == nil {
			return nil, errors.New("notify: peer mode requires a notifications client")
		}
		return NewPeerNotifier(peer), nil
	case ModeLog:
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("notify: unknown mode %q", mode)
	}
}
