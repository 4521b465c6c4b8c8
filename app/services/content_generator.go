package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/inboxglow/inboxglow/config"
)

// MessageContent is one generated subject/body pair
type MessageContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MessageContext carries what the generator may vary content on
type MessageContext struct {
	FromEmail    string `json:"from_email"`
	ToEmail      string `json:"to_email"`
	ExchangeSeq  int    `json:"exchange_seq"`
	IsReply      bool   `json:"is_reply"`
	PriorSubject string `json:"prior_subject,omitempty"`
}

// ContentGenerator produces warmup message content. Output is opaque to the
// core; a generator that returns empty or garbled content is tolerated by
// falling back to the deterministic template set.
type ContentGenerator interface {
	Generate(ctx context.Context, mctx MessageContext) (MessageContent, error)
}

// Built-in template set used directly by the template provider and as the
// fallback when an upstream generator misbehaves
var warmupTemplates = []MessageContent{
	{Subject: "Quick question about next week", Body: "Hi,\n\nDo you have a few minutes next week to sync up? Let me know what works.\n\nThanks"},
	{Subject: "Following up on our conversation", Body: "Hello,\n\nJust following up on what we discussed. Happy to share more details whenever convenient.\n\nBest"},
	{Subject: "Notes from today", Body: "Hi,\n\nSharing a few quick notes from today. Nothing urgent, just keeping you in the loop.\n\nCheers"},
	{Subject: "Checking in", Body: "Hey,\n\nIt has been a while, hope things are going well on your end. Would be great to catch up.\n\nTake care"},
	{Subject: "Re: scheduling", Body: "Hi,\n\nThat time works for me. I will send over the details before then.\n\nThanks again"},
	{Subject: "Article you might like", Body: "Hello,\n\nCame across something that reminded me of our last chat. Worth a read when you have a moment.\n\nBest"},
}

// TemplateContentGenerator serves deterministic rotating templates
type TemplateContentGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTemplateContentGenerator creates a template-backed generator
func NewTemplateContentGenerator(seed int64) *TemplateContentGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TemplateContentGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Generate picks a template, preferring sequence rotation over pure randomness
func (g *TemplateContentGenerator) Generate(_ context.Context, mctx MessageContext) (MessageContent, error) {
	idx := mctx.ExchangeSeq % len(warmupTemplates)
	if mctx.ExchangeSeq == 0 {
		g.mu.Lock()
		idx = g.rng.Intn(len(warmupTemplates))
		g.mu.Unlock()
	}

	content := warmupTemplates[idx]
	if mctx.IsReply && mctx.PriorSubject != "" {
		content.Subject = replySubject(mctx.PriorSubject)
	}
	return content, nil
}

func replySubject(prior string) string {
	if strings.HasPrefix(strings.ToLower(prior), "re:") {
		return prior
	}
	return "Re: " + prior
}

// AIContentGenerator asks an upstream generation service for content and
// falls back to templates when the upstream output is unusable
type AIContentGenerator struct {
	config   *config.ServicesConfig
	client   *http.Client
	fallback *TemplateContentGenerator
}

// NewContentGenerator creates a content generator from configuration
func NewContentGenerator(cfg *config.ServicesConfig) ContentGenerator {
	if cfg.ContentProvider == "template" || cfg.ContentURL == "" {
		return NewTemplateContentGenerator(0)
	}
	return &AIContentGenerator{
		config:   cfg,
		client:   &http.Client{Timeout: cfg.ContentTimeout},
		fallback: NewTemplateContentGenerator(0),
	}
}

// Generate calls the upstream generator, validating its output before use
func (g *AIContentGenerator) Generate(ctx context.Context, mctx MessageContext) (MessageContent, error) {
	payload, err := json.Marshal(mctx)
	if err != nil {
		return g.fallback.Generate(ctx, mctx)
	}

	url := fmt.Sprintf("%s/v1/generate", g.config.ContentURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return g.fallback.Generate(ctx, mctx)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.config.ContentAPIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return g.fallback.Generate(ctx, mctx)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return g.fallback.Generate(ctx, mctx)
	}

	var content MessageContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return g.fallback.Generate(ctx, mctx)
	}
	if !usableContent(content) {
		return g.fallback.Generate(ctx, mctx)
	}

	return content, nil
}

// usableContent rejects empty or garbled generator output
func usableContent(c MessageContent) bool {
	subject := strings.TrimSpace(c.Subject)
	body := strings.TrimSpace(c.Body)
	if subject == "" || body == "" {
		return false
	}
	if len(subject) > 200 || len(body) > 10000 {
		return false
	}
	// A subject that is mostly non-printable is garbage
	printable := 0
	for _, r := range subject {
		if r >= 32 && r < 127 {
			printable++
		}
	}
	return printable*2 >= len(subject)
}
