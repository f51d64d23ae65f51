package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail renders and delivers a templated guest email.
	TaskTypeSendEmail = "notify:email"
	// TaskTypeSendSMS delivers a guest SMS.
	TaskTypeSendSMS = "notify:sms"

	defaultMaxRetry = 5
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// SendSMSPayload describes a text message.
type SendSMSPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if payload.To == "" {
		return nil, errors.New("jobs: email recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(defaultMaxRetry)), nil
}

// NewSendSMSTask constructs an Asynq task.
func NewSendSMSTask(payload SendSMSPayload) (*asynq.Task, error) {
	if payload.To == "" {
		return nil, errors.New("jobs: sms recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendSMS, data, asynq.Queue(QueueDefault), asynq.MaxRetry(defaultMaxRetry)), nil
}
