package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, body []byte, contentType string) error {
	return m.Called(ctx, routingKey, body, contentType).Error(0)
}

func pushMessage() notify.PushMessage {
	return notify.PushMessage{
		Recipients:   notify.TagExpression([]domain.User{{Email: "T1@example.com"}, {Email: "t2@example.com"}}),
		JobID:        "job-1",
		Kind:         notify.KindSuitableJob,
		Data:         map[string]string{"immediate": "no"},
		Text:         "Ny bokning för arabiska tolk 90min 2026-06-05",
		AndroidSound: notify.SoundNormalAndroid,
		IOSSound:     notify.SoundNormalIOS,
	}
}

func TestPushQueue(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, RoutingKeyPush, mock.MatchedBy(func(body []byte) bool {
		var msg notify.PushMessage
		return json.Unmarshal(body, &msg) == nil && msg.JobID == "job-1" && len(msg.Recipients) == 3
	}), "application/json").Return(nil).Once()

	require.NoError(t, NewPushQueue(pub, "").Push(context.Background(), pushMessage()))
	pub.AssertExpectations(t)
}

func TestMailQueueWrapsFailures(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "mail.custom", mock.Anything, "application/json").
		Return(errors.New("channel closed")).Once()

	err := NewMailQueue(pub, "mail.custom").Send(context.Background(), notify.EmailMessage{
		To:       "c1@example.com",
		Template: notify.TemplateJobCreated,
	})

	var d *domain.DeliveryError
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "email", d.Channel)
	pub.AssertExpectations(t)
}

func TestOneSignalDeliver(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		assert.Equal(t, "Basic secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"n-1","recipients":2}`))
	}))
	defer srv.Close()

	client, err := NewOneSignal(OneSignalConfig{BaseURL: srv.URL + "/api/v1/", AppID: "app", APIKey: "secret"})
	require.NoError(t, err)

	msg := pushMessage()
	at := time.Date(2026, 6, 2, 7, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	msg.SendAfter = &at
	require.NoError(t, client.Deliver(context.Background(), msg))

	assert.Equal(t, "app", got["app_id"])
	assert.Equal(t, map[string]any{"en": "DigitalTolk"}, got["headings"])
	assert.Equal(t, map[string]any{"en": msg.Text}, got["contents"])
	assert.Equal(t, "Increase", got["ios_badgeType"])
	assert.EqualValues(t, 1, got["ios_badgeCount"])
	assert.Equal(t, "normal_booking", got["android_sound"])
	assert.Equal(t, "normal_booking.mp3", got["ios_sound"])
	assert.Equal(t, "2026-06-02 07:00:00 GMT+0200", got["send_after"])

	data := got["data"].(map[string]any)
	assert.Equal(t, "job-1", data["job_id"])
	assert.Equal(t, "suitable_job", data["notification_type"])
	assert.Equal(t, "no", data["immediate"])

	tags := got["tags"].([]any)
	require.Len(t, tags, 3)
	assert.Equal(t, map[string]any{"key": "email", "relation": "=", "value": "t1@example.com"}, tags[0])
	assert.Equal(t, map[string]any{"operator": "OR"}, tags[1])
}

func TestOneSignalDeliverErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantRejected bool
	}{
		{name: "bad request is rejected", status: http.StatusBadRequest, wantRejected: true},
		{name: "unauthorized is rejected", status: http.StatusUnauthorized, wantRejected: true},
		{name: "rate limited can be retried", status: http.StatusTooManyRequests},
		{name: "server error can be retried", status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"errors":["nope"]}`))
			}))
			defer srv.Close()

			client, err := NewOneSignal(OneSignalConfig{BaseURL: srv.URL, AppID: "app"})
			require.NoError(t, err)

			err = client.Deliver(context.Background(), pushMessage())
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, ErrRejected))
			assert.Contains(t, err.Error(), "nope")
		})
	}

	t.Run("no recipients", func(t *testing.T) {
		client, err := NewOneSignal(OneSignalConfig{AppID: "app"})
		require.NoError(t, err)
		assert.ErrorIs(t, client.Deliver(context.Background(), notify.PushMessage{JobID: "job-1"}), ErrRejected)
	})

	t.Run("missing app id", func(t *testing.T) {
		_, err := NewOneSignal(OneSignalConfig{})
		assert.Error(t, err)
	})
}

func TestSMSGatewaySend(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req smsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.To == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		assert.Equal(t, "+46700000000", req.From)
		_ = json.NewEncoder(w).Encode(smsResponse{Status: "queued"})
	}))
	defer srv.Close()

	gw, err := NewSMSGateway(SMSConfig{URL: srv.URL, Token: "tok", PerSecond: 100, Burst: 1})
	require.NoError(t, err)

	status, err := gw.Send(context.Background(), notify.SMSMessage{From: "+46700000000", To: "+46701111111", Text: "hej"})
	require.NoError(t, err)
	assert.Equal(t, "queued", status)

	_, err = gw.Send(context.Background(), notify.SMSMessage{From: "+46700000000", Text: "hej"})
	var d *domain.DeliveryError
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "sms", d.Channel)
	assert.ErrorIs(t, err, ErrRejected)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSMSGatewayRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw, err := NewSMSGateway(SMSConfig{URL: srv.URL, PerSecond: 0.001, Burst: 1})
	require.NoError(t, err)

	status, err := gw.Send(context.Background(), notify.SMSMessage{To: "1"})
	require.NoError(t, err)
	assert.Equal(t, "OK", status)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = gw.Send(ctx, notify.SMSMessage{To: "2"})
	assert.Error(t, err, "the second message waits longer than the deadline")
}
