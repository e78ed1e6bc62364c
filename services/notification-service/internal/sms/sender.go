// Package sms delivers the short-message channel of appointment
// notifications through a provider-agnostic webhook.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sender sends one rendered SMS notification to a patient phone number.
type Sender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

// webhookMessage is the JSON body posted to the SMS gateway for each
// appointment notification.
type webhookMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// WebhookSender posts each message to an HTTP SMS gateway. The gateway
// URL and optional bearer token come from configuration; anything other
// than a 2xx response counts as a failed delivery.
type WebhookSender struct {
	url    string
	token  string
	client *http.Client
}

func NewWebhookSender(url string, token string) *WebhookSender {
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebhookSender) ProviderID() string {
	return "sms-webhook"
}

func (s *WebhookSender) Send(ctx context.Context, to string, body string) error {
	if s.url == "" {
		return errors.New("sms gateway url not configured")
	}
	raw, err := json.Marshal(webhookMessage{
		To:      to,
		Message: body,
		Source:  "clinicbook",
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// NoopSender drops messages. It stands in when no gateway is configured
// so the email channel still works in local setups.
type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "sms-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}
