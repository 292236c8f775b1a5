package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
)

// SMSConfig configures the SMS gateway client
type SMSConfig struct {
	URL       string
	Token     string
	PerSecond float64
	Burst     int
	Timeout   time.Duration
	Client    *http.Client
}

// SMSGateway posts text messages to an HTTP gateway, throttled so a large
// fan-out stays under the gateway's rate limit
type SMSGateway struct {
	url     string
	token   string
	limiter *rate.Limiter
	client  *http.Client
}

func NewSMSGateway(cfg SMSConfig) (*SMSGateway, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, errors.New("sms gateway url is required")
	}

	limit := rate.Inf
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
	}
	burst := max(cfg.Burst, 1)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &SMSGateway{
		url:     u,
		token:   cfg.Token,
		limiter: rate.NewLimiter(limit, burst),
		client:  hc,
	}, nil
}

type smsRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

type smsResponse struct {
	Status string `json:"status"`
}

// Send returns the gateway's delivery status
func (g *SMSGateway) Send(ctx context.Context, msg notify.SMSMessage) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", &domain.DeliveryError{Channel: "sms", Err: err}
	}

	body, err := json.Marshal(smsRequest{From: msg.From, To: msg.To, Message: msg.Text})
	if err != nil {
		return "", &domain.DeliveryError{Channel: "sms", Err: fmt.Errorf("encode sms: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", &domain.DeliveryError{Channel: "sms", Err: fmt.Errorf("create sms request: %w", err)}
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &domain.DeliveryError{Channel: "sms", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.DeliveryError{Channel: "sms", Err: checkStatus("sms gateway", resp)}
	}

	var out smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Status == "" {
		return http.StatusText(resp.StatusCode), nil
	}
	return out.Status, nil
}
