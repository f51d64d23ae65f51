package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmail(t *testing.T) {
	html, err := RenderEmail(TemplateCheckoutConfirmation, map[string]any{
		"hotelName":     "Easy Hotel",
		"guestName":     "Ana <script>",
		"reservationId": "res-1",
		"totalAmount":   450.5,
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Check-out completed")
	assert.Contains(t, html, "res-1")
	assert.Contains(t, html, "450.5")
	assert.Contains(t, html, "Ana &lt;script&gt;")
}

func TestRenderEmailFallsBackToReservationConfirmation(t *testing.T) {
	html, err := RenderEmail("birthday-greeting", map[string]any{"reservationId": "res-2", "hotelName": "Easy Hotel"})
	require.NoError(t, err)
	assert.Contains(t, html, "Reservation confirmed")
	assert.Contains(t, html, "res-2")
}

func TestNewTasksRequireRecipient(t *testing.T) {
	_, err := NewSendEmailTask(SendEmailPayload{Subject: "hi"})
	assert.Error(t, err)
	_, err = NewSendSMSTask(SendSMSPayload{Message: "hi"})
	assert.Error(t, err)

	task, err := NewSendSMSTask(SendSMSPayload{To: "+5511999990000", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSendSMS, task.Type())
}

func TestMailerHandlesEmailTask(t *testing.T) {
	logs := &bytes.Buffer{}
	m := NewMailer(slog.New(slog.NewJSONHandler(logs, nil)))

	task, err := NewSendEmailTask(SendEmailPayload{
		To:       "ana@example.com",
		Subject:  "Payment processed",
		Template: TemplatePaymentConfirmation,
		Data:     map[string]any{"reservationId": "res-3", "amount": "120.00"},
	})
	require.NoError(t, err)
	require.NoError(t, m.HandleSendEmailTask(context.Background(), task))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "email delivered", entry["msg"])
	assert.Equal(t, "ana@example.com", entry["to"])
}

func TestMailerSkipsRetryOnBadPayload(t *testing.T) {
	m := NewMailer(nil)

	err := m.HandleSendEmailTask(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte(`{`)))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = m.HandleSendSMSTask(context.Background(), asynq.NewTask(TaskTypeSendSMS, []byte(`{"to":"+1"}`)))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = m.HandleSendSMSTask(context.Background(), asynq.NewTask(TaskTypeSendSMS, []byte(`{"to":"+1","message":"hi"}`)))
	assert.NoError(t, err)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestJobsHealthHandler(t *testing.T) {
	cases := map[string]struct {
		inspector QueueInspector
		code      int
		body      string
	}{
		"no inspector": {nil, http.StatusOK, `{"queue":"default","pending":0,"active":0,"retry":0}`},
		"queue info":   {fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 7, Active: 1, Retry: 2}}, http.StatusOK, `{"queue":"default","pending":7,"active":1,"retry":2}`},
		"redis down":   {fakeInspector{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, slog.Default()).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			assert.Equal(t, tc.code, rr.Code)
			if tc.body != "" {
				assert.JSONEq(t, tc.body, rr.Body.String())
			}
		})
	}
}
