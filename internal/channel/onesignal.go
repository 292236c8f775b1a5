package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/booking-service/internal/booking/notify"
)

const (
	defaultOneSignalURL = "https://onesignal.com/api/v1"
	pushHeading         = "DigitalTolk"
	sendAfterLayout     = "2006-01-02 15:04:05 GMT-0700"
)

// ErrRejected marks a request the provider refused. Retrying will not help.
var ErrRejected = errors.New("rejected by provider")

// OneSignalConfig configures the push provider client
type OneSignalConfig struct {
	BaseURL string
	AppID   string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

// OneSignal posts push notifications to the OneSignal REST API
type OneSignal struct {
	baseURL string
	appID   string
	apiKey  string
	client  *http.Client
}

func NewOneSignal(cfg OneSignalConfig) (*OneSignal, error) {
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, errors.New("onesignal app id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &OneSignal{
		baseURL: strings.TrimRight(fallback(strings.TrimSpace(cfg.BaseURL), defaultOneSignalURL), "/"),
		appID:   cfg.AppID,
		apiKey:  cfg.APIKey,
		client:  hc,
	}, nil
}

type oneSignalRequest struct {
	AppID         string             `json:"app_id"`
	Tags          []notify.TagFilter `json:"tags"`
	Data          map[string]string  `json:"data"`
	Headings      map[string]string  `json:"headings"`
	Contents      map[string]string  `json:"contents"`
	IOSBadgeType  string             `json:"ios_badgeType"`
	IOSBadgeCount int                `json:"ios_badgeCount"`
	AndroidSound  string             `json:"android_sound"`
	IOSSound      string             `json:"ios_sound"`
	SendAfter     string             `json:"send_after,omitempty"`
}

func (o *OneSignal) request(msg notify.PushMessage) oneSignalRequest {
	data := make(map[string]string, len(msg.Data)+2)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["job_id"] = msg.JobID
	data["notification_type"] = string(msg.Kind)

	req := oneSignalRequest{
		AppID:         o.appID,
		Tags:          msg.Recipients,
		Data:          data,
		Headings:      map[string]string{"en": pushHeading},
		Contents:      map[string]string{"en": msg.Text},
		IOSBadgeType:  "Increase",
		IOSBadgeCount: 1,
		AndroidSound:  fallback(msg.AndroidSound, notify.SoundDefault),
		IOSSound:      fallback(msg.IOSSound, notify.SoundDefault),
	}
	if msg.SendAfter != nil {
		req.SendAfter = msg.SendAfter.Format(sendAfterLayout)
	}
	return req
}

// Deliver sends one push. A 4xx answer wraps ErrRejected. Network errors
// and 5xx answers are returned as is.
func (o *OneSignal) Deliver(ctx context.Context, msg notify.PushMessage) error {
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("push for job %s has no recipients: %w", msg.JobID, ErrRejected)
	}

	body, err := json.Marshal(o.request(msg))
	if err != nil {
		return fmt.Errorf("encode onesignal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create onesignal request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Authorization", "Basic "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("onesignal request: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus("onesignal", resp)
}

func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s returned %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return err
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
