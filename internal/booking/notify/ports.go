package notify

import (
	"context"
	"time"
)

// Kind is the notification_type carried in a push payload
type Kind string

const (
	KindSuitableJob        Kind = "suitable_job"
	KindJobAccepted        Kind = "job_accepted"
	KindJobCancelled       Kind = "job_cancelled"
	KindJobExpired         Kind = "job_expired"
	KindSessionStartRemind Kind = "session_start_remind"
)

// Sounds used for suitable_job pushes
const (
	SoundDefault          = "default"
	SoundNormalAndroid    = "normal_booking"
	SoundNormalIOS        = "normal_booking.mp3"
	SoundEmergencyAndroid = "emergency_booking"
	SoundEmergencyIOS     = "emergency_booking.mp3"
)

// PushMessage is one push notification addressed by tag expression
type PushMessage struct {
	Recipients   []TagFilter       `json:"recipients"`
	JobID        string            `json:"job_id"`
	Kind         Kind              `json:"notification_type"`
	Data         map[string]string `json:"data,omitempty"`
	Text         string            `json:"text"`
	AndroidSound string            `json:"android_sound"`
	IOSSound     string            `json:"ios_sound"`
	SendAfter    *time.Time        `json:"send_after,omitempty"`
}

// SMSMessage is one text message
type SMSMessage struct {
	From string
	To   string
	Text string
}

// EmailMessage is one outbound mail. Rendering happens downstream.
type EmailMessage struct {
	To       string         `json:"to"`
	Name     string         `json:"name"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// PushChannel hands push messages to the push provider
type PushChannel interface {
	Push(ctx context.Context, msg PushMessage) error
}

// SMSChannel sends a text message and returns the gateway's delivery status
type SMSChannel interface {
	Send(ctx context.Context, msg SMSMessage) (string, error)
}

// EmailChannel hands mails to the mail renderer
type EmailChannel interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// OnceGuard reports true the first time a key is seen
type OnceGuard interface {
	First(ctx context.Context, key string) (bool, error)
}
