package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SMSConfig configures the HTTP SMS gateway
type SMSConfig struct {
	GatewayURL string
	APIKey     string
	Sender     string
	Timeout    time.Duration
	RetryCount int
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type smsResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// SMSSender posts messages to an HTTP SMS gateway
type SMSSender struct {
	httpClient *resty.Client
	from       string
	log        *zap.Logger
}

// NewSMSSender creates an SMS gateway client
func NewSMSSender(cfg SMSConfig, log *zap.Logger) *SMSSender {
	client := resty.New().
		SetBaseURL(cfg.GatewayURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &SMSSender{
		httpClient: client,
		from:       cfg.Sender,
		log:        log,
	}
}

// Send posts one message; any non-2xx answer is a delivery failure
func (s *SMSSender) Send(ctx context.Context, destination, message string) error {
	var result smsResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(smsRequest{To: destination, From: s.from, Message: message}).
		SetResult(&result).
		SetError(&result).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: gateway answered %d: %s", ErrDeliveryFailed, resp.StatusCode(), result.Error)
	}

	s.log.Debug("SMS accepted by gateway",
		zap.String("message_id", result.ID),
		zap.String("status", result.Status))
	return nil
}
