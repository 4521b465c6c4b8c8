// Package services provides external service integrations and technical concerns like mail transport and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/utils"
)

// TransportError marks a delivery failure at the mail transport boundary
type TransportError struct {
	Code string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail transport error %s: %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SendResult is the transport's acknowledgement of one delivered message
type SendResult struct {
	MessageID string `json:"message_id"`
}

// MailSender delivers one warmup exchange message. SMTP and TLS mechanics
// live behind the gateway; this core only calls and records the outcome.
type MailSender interface {
	Send(ctx context.Context, fromEmail, toEmail, subject, body string) (*SendResult, error)
}

// GatewayMailSender delivers through the HTTP mail gateway
type GatewayMailSender struct {
	config *config.ServicesConfig
	client *http.Client
}

// NewMailSender creates a mail sender from configuration
func NewMailSender(cfg *config.ServicesConfig) MailSender {
	if cfg.MailProvider == "mock" {
		return NewMockMailSender()
	}
	return &GatewayMailSender{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.MailTimeout,
		},
	}
}

type gatewaySendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send posts the message to the gateway and returns its message id
func (s *GatewayMailSender) Send(ctx context.Context, fromEmail, toEmail, subject, body string) (*SendResult, error) {
	payload, err := json.Marshal(gatewaySendRequest{
		From:    fromEmail,
		To:      toEmail,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/send", s.config.MailURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.MailAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Code: "GATEWAY_UNREACHABLE", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &TransportError{
			Code: "GATEWAY_REJECTED",
			Err:  fmt.Errorf("gateway returned status %d", resp.StatusCode),
		}
	}

	var result SendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{Code: "GATEWAY_BAD_RESPONSE", Err: err}
	}
	if result.MessageID == "" {
		return nil, &TransportError{
			Code: "GATEWAY_BAD_RESPONSE",
			Err:  fmt.Errorf("gateway returned empty message id"),
		}
	}

	return &result, nil
}

// MockMailSender implements MailSender for testing and development
type MockMailSender struct {
	mu           sync.Mutex
	SentMessages []MockMailMessage
	FailNext     bool
}

// MockMailMessage represents a mock delivered message
type MockMailMessage struct {
	From    string
	To      string
	Subject string
	SentAt  time.Time
}

// NewMockMailSender creates a new mock mail sender
func NewMockMailSender() *MockMailSender {
	return &MockMailSender{
		SentMessages: make([]MockMailMessage, 0),
	}
}

// Send records a mock delivery
func (m *MockMailSender) Send(_ context.Context, fromEmail, toEmail, subject, _ string) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNext {
		m.FailNext = false
		return nil, &TransportError{Code: "MOCK_FAILURE", Err: fmt.Errorf("simulated transport failure")}
	}

	m.SentMessages = append(m.SentMessages, MockMailMessage{
		From:    fromEmail,
		To:      toEmail,
		Subject: subject,
		SentAt:  utils.UTCNow(),
	})

	return &SendResult{MessageID: uuid.New().String()}, nil
}

// Sent returns a copy of all mock-delivered messages
func (m *MockMailSender) Sent() []MockMailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMailMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
