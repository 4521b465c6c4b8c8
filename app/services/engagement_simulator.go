package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/utils"
)

// EngagementAction is one simulated mailbox interaction
type EngagementAction string

const (
	ActionOpen           EngagementAction = "open"
	ActionReply          EngagementAction = "reply"
	ActionStar           EngagementAction = "star"
	ActionArchive        EngagementAction = "archive"
	ActionRescueFromSpam EngagementAction = "rescue_from_spam"
)

// Valid checks if the engagement action is valid
func (a EngagementAction) Valid() bool {
	switch a {
	case ActionOpen, ActionReply, ActionStar, ActionArchive, ActionRescueFromSpam:
		return true
	default:
		return false
	}
}

// EngagementCriteria identifies the message the action targets
type EngagementCriteria struct {
	AccountEmail string `json:"account_email"`
	FromEmail    string `json:"from_email"`
	Subject      string `json:"subject,omitempty"`
	MessageID    string `json:"message_id,omitempty"`
}

// EngagementSimulator performs mailbox interactions against live mailboxes.
// The core decides when and which action; the simulator owns how.
type EngagementSimulator interface {
	Perform(ctx context.Context, action EngagementAction, criteria EngagementCriteria) error
}

// GatewayEngagementSimulator drives the headless-browser engagement service
type GatewayEngagementSimulator struct {
	config *config.ServicesConfig
	client *http.Client
}

// NewEngagementSimulator creates an engagement simulator from configuration
func NewEngagementSimulator(cfg *config.ServicesConfig) EngagementSimulator {
	if cfg.EngagementProvider == "mock" {
		return NewMockEngagementSimulator()
	}
	return &GatewayEngagementSimulator{
		config: cfg,
		client: &http.Client{Timeout: cfg.EngagementTimeout},
	}
}

type engagementRequest struct {
	Action   EngagementAction   `json:"action"`
	Criteria EngagementCriteria `json:"criteria"`
}

type engagementResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Perform posts the action to the engagement gateway
func (s *GatewayEngagementSimulator) Perform(ctx context.Context, action EngagementAction, criteria EngagementCriteria) error {
	if !action.Valid() {
		return fmt.Errorf("invalid engagement action: %s", action)
	}

	payload, err := json.Marshal(engagementRequest{Action: action, Criteria: criteria})
	if err != nil {
		return fmt.Errorf("failed to marshal engagement request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/perform", s.config.EngagementURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.EngagementAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach engagement service: %w", err)
	}
	defer resp.Body.Close()

	var result engagementResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode engagement response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("engagement %s failed: %s", action, result.Error)
	}

	return nil
}

// MockEngagementSimulator implements EngagementSimulator for testing
type MockEngagementSimulator struct {
	mu       sync.Mutex
	Actions  []MockEngagement
	FailNext bool
}

// MockEngagement records one simulated action
type MockEngagement struct {
	Action      EngagementAction
	Criteria    EngagementCriteria
	PerformedAt time.Time
}

// NewMockEngagementSimulator creates a new mock engagement simulator
func NewMockEngagementSimulator() *MockEngagementSimulator {
	return &MockEngagementSimulator{
		Actions: make([]MockEngagement, 0),
	}
}

// Perform records a mock engagement action
func (m *MockEngagementSimulator) Perform(_ context.Context, action EngagementAction, criteria EngagementCriteria) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNext {
		m.FailNext = false
		return fmt.Errorf("simulated engagement failure")
	}

	m.Actions = append(m.Actions, MockEngagement{
		Action:      action,
		Criteria:    criteria,
		PerformedAt: utils.UTCNow(),
	})
	return nil
}

// Performed returns a copy of all recorded actions
func (m *MockEngagementSimulator) Performed() []MockEngagement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockEngagement, len(m.Actions))
	copy(out, m.Actions)
	return out
}
