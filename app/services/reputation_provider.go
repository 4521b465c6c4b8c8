package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/inboxglow/inboxglow/config"
)

// ErrReputationUnavailable marks a missed poll. Unavailability means "no new
// data", never an auto-pause on its own.
var ErrReputationUnavailable = errors.New("reputation provider unavailable")

// Alert severities reported by the provider
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ReputationAlert is one provider-reported incident
type ReputationAlert struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// DomainReputation is the provider's view of a sending domain
type DomainReputation struct {
	Domain       string             `json:"domain"`
	OverallLevel string             `json:"overall_level"` // high, medium, low, bad
	SpamRate     float64            `json:"spam_rate"`
	AuthRates    map[string]float64 `json:"auth_rates"` // spf, dkim, dmarc pass rates
	Alerts       []ReputationAlert  `json:"alerts,omitempty"`
}

// HasCriticalAlert reports whether any alert is critical severity
func (r *DomainReputation) HasCriticalAlert() (bool, string) {
	for _, a := range r.Alerts {
		if a.Severity == SeverityCritical {
			return true, a.Message
		}
	}
	return false, ""
}

// ReputationProvider polls third-party reputation data for a sending domain
type ReputationProvider interface {
	GetReputation(ctx context.Context, domain string) (*DomainReputation, error)
}

// GatewayReputationProvider polls the HTTP reputation service
type GatewayReputationProvider struct {
	config *config.ServicesConfig
	client *http.Client
}

// NewReputationProvider creates a reputation provider from configuration
func NewReputationProvider(cfg *config.ServicesConfig) ReputationProvider {
	if cfg.ReputationProvider == "mock" {
		return NewMockReputationProvider()
	}
	return &GatewayReputationProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.ReputationTimeout},
	}
}

// GetReputation fetches the domain's current reputation snapshot
func (s *GatewayReputationProvider) GetReputation(ctx context.Context, domain string) (*DomainReputation, error) {
	endpoint := fmt.Sprintf("%s/v1/reputation?domain=%s", s.config.ReputationURL, url.QueryEscape(domain))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", s.config.ReputationAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReputationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrReputationUnavailable, resp.StatusCode)
	}

	var rep DomainReputation
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReputationUnavailable, err)
	}
	rep.Domain = domain

	return &rep, nil
}

// MockReputationProvider implements ReputationProvider for testing
type MockReputationProvider struct {
	mu          sync.Mutex
	Reputations map[string]*DomainReputation
	Unavailable bool
}

// NewMockReputationProvider creates a new mock reputation provider
func NewMockReputationProvider() *MockReputationProvider {
	return &MockReputationProvider{
		Reputations: make(map[string]*DomainReputation),
	}
}

// SetReputation seeds mock data for a domain
func (m *MockReputationProvider) SetReputation(domain string, rep *DomainReputation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reputations[domain] = rep
}

// GetReputation returns seeded mock data, or a healthy default
func (m *MockReputationProvider) GetReputation(_ context.Context, domain string) (*DomainReputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Unavailable {
		return nil, ErrReputationUnavailable
	}
	if rep, ok := m.Reputations[domain]; ok {
		return rep, nil
	}
	return &DomainReputation{
		Domain:       domain,
		OverallLevel: "high",
		SpamRate:     0,
		AuthRates:    map[string]float64{"spf": 1, "dkim": 1, "dmarc": 1},
	}, nil
}
