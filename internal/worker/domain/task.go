package domain

import (
	"github.com/cuongbtq/booking-service/internal/booking/notify"
)

// PushTask is a queued push notification waiting for delivery
type PushTask struct {
	Message     notify.PushMessage
	DeliveryTag uint64
	// Attempt starts at 1 and grows with every redelivery
	Attempt int
}
