package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/diewo77/atelier/internal/config"
)

// Sender delivers a text message. Implementations must not be called inside a DB transaction.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender is a resty-backed Sender for the Twilio Messages API.
type TwilioSender struct {
	httpClient *resty.Client
	accountSID string
	from       string
}

// NewTwilioSender builds a sender from the SMS configuration.
// It returns nil when the configuration is incomplete so callers can skip sending.
func NewTwilioSender(cfg config.SMSConfig) *TwilioSender {
	if !cfg.Enabled() {
		return nil
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.twilio.com/2010-04-01"
	}
	client := resty.New().
		SetBaseURL(base).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetTimeout(10 * time.Second).
		SetRetryCount(1)
	return &TwilioSender{httpClient: client, accountSID: cfg.AccountSID, from: cfg.From}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send posts one message. to must be in international format.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	apiErr := new(twilioError)
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"To": to, "From": s.from, "Body": body}).
		SetError(apiErr).
		Post(fmt.Sprintf("/Accounts/%s/Messages.json", s.accountSID))
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		code := resp.StatusCode()
		if apiErr.Code != 0 {
			code = apiErr.Code
		}
		return fmt.Errorf("twilio api error: code=%d, message=%s", code, apiErr.Message)
	}
	return nil
}
