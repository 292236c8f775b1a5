// Package channel implements the notify delivery ports: push and mail go
// onto RabbitMQ, the worker hands queued pushes to OneSignal, and SMS is
// posted straight to the gateway.
package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
)

// Routing keys on the booking exchange
const (
	RoutingKeyPush = "notification.push"
	RoutingKeyMail = "notification.mail"
)

const contentTypeJSON = "application/json"

// Publisher is satisfied by *rabbitmq.Client
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// PushQueue queues push messages for the worker-service
type PushQueue struct {
	pub        Publisher
	routingKey string
}

func NewPushQueue(pub Publisher, routingKey string) *PushQueue {
	if routingKey == "" {
		routingKey = RoutingKeyPush
	}
	return &PushQueue{pub: pub, routingKey: routingKey}
}

func (q *PushQueue) Push(ctx context.Context, msg notify.PushMessage) error {
	return publishJSON(ctx, q.pub, q.routingKey, "push", msg)
}

// MailQueue queues mails for the downstream renderer
type MailQueue struct {
	pub        Publisher
	routingKey string
}

func NewMailQueue(pub Publisher, routingKey string) *MailQueue {
	if routingKey == "" {
		routingKey = RoutingKeyMail
	}
	return &MailQueue{pub: pub, routingKey: routingKey}
}

func (q *MailQueue) Send(ctx context.Context, msg notify.EmailMessage) error {
	return publishJSON(ctx, q.pub, q.routingKey, "email", msg)
}

func publishJSON(ctx context.Context, pub Publisher, routingKey, channel string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return &domain.DeliveryError{Channel: channel, Err: fmt.Errorf("encode message: %w", err)}
	}
	if err := pub.Publish(ctx, routingKey, body, contentTypeJSON); err != nil {
		return &domain.DeliveryError{Channel: channel, Err: err}
	}
	return nil
}
