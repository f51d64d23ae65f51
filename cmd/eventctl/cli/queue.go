package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/easyhotel/easyhotel/jobs"
)

// QueueCLI wraps manual helpers for the notification task queue.
type QueueCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewQueueCLI initialises the helpers against the given Redis.
func NewQueueCLI(opts asynq.RedisClientOpt) *QueueCLI {
	return &QueueCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *QueueCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// SendTestEmail enqueues a rendered confirmation email to recipient.
func (c *QueueCLI) SendTestEmail(ctx context.Context, recipient, template string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("queue cli: client not configured")
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, errors.New("queue cli: recipient required")
	}
	if template == "" {
		template = jobs.TemplateReservationConfirmation
	}
	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{
		To:       recipient,
		Subject:  "EasyHotel queue test",
		Template: template,
		Data: map[string]any{
			"guestName":     "Queue Test",
			"reservationId": "res_queue_test",
			"hotelName":     "Easy Hotel",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue cli: %w", err)
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the metrics of the default queue.
func (c *QueueCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("queue cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}
