package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/inboxglow/inboxglow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateContentGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("exchange sequence rotates templates deterministically", func(t *testing.T) {
		gen := NewTemplateContentGenerator(42)

		for seq := 1; seq < 12; seq++ {
			content, err := gen.Generate(ctx, MessageContext{ExchangeSeq: seq})
			require.NoError(t, err)
			expected := warmupTemplates[seq%len(warmupTemplates)]
			assert.Equal(t, expected.Subject, content.Subject)
			assert.NotEmpty(t, content.Body)
		}
	})

	t.Run("same seed produces the same first draw", func(t *testing.T) {
		a, err := NewTemplateContentGenerator(7).Generate(ctx, MessageContext{})
		require.NoError(t, err)
		b, err := NewTemplateContentGenerator(7).Generate(ctx, MessageContext{})
		require.NoError(t, err)
		assert.Equal(t, a.Subject, b.Subject)
	})

	t.Run("reply carries the prior subject", func(t *testing.T) {
		gen := NewTemplateContentGenerator(1)
		content, err := gen.Generate(ctx, MessageContext{
			ExchangeSeq:  2,
			IsReply:      true,
			PriorSubject: "Quick question about next week",
		})
		require.NoError(t, err)
		assert.Equal(t, "Re: Quick question about next week", content.Subject)
	})

	t.Run("reply prefix is not doubled", func(t *testing.T) {
		assert.Equal(t, "Re: scheduling", replySubject("Re: scheduling"))
		assert.Equal(t, "re: scheduling", replySubject("re: scheduling"))
		assert.Equal(t, "Re: hello", replySubject("hello"))
	})
}

func TestUsableContent(t *testing.T) {
	tests := []struct {
		name    string
		content MessageContent
		want    bool
	}{
		{name: "normal content", content: MessageContent{Subject: "Hi there", Body: "A short note."}, want: true},
		{name: "empty subject", content: MessageContent{Body: "body"}, want: false},
		{name: "whitespace body", content: MessageContent{Subject: "Hi", Body: "   "}, want: false},
		{name: "oversized subject", content: MessageContent{Subject: strings.Repeat("a", 201), Body: "ok"}, want: false},
		{name: "mostly non-printable subject", content: MessageContent{Subject: "\x01\x02\x03\x04\x05a", Body: "ok"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usableContent(tt.content))
		})
	}
}

func TestNewContentGeneratorSelection(t *testing.T) {
	template := NewContentGenerator(&config.ServicesConfig{ContentProvider: "template"})
	assert.IsType(t, &TemplateContentGenerator{}, template)

	noURL := NewContentGenerator(&config.ServicesConfig{ContentProvider: "ai"})
	assert.IsType(t, &TemplateContentGenerator{}, noURL)

	ai := NewContentGenerator(&config.ServicesConfig{
		ContentProvider: "ai",
		ContentURL:      "http://content.internal",
		ContentTimeout:  5 * time.Second,
	})
	assert.IsType(t, &AIContentGenerator{}, ai)
}

func TestEngagementActionValid(t *testing.T) {
	for _, action := range []EngagementAction{ActionOpen, ActionReply, ActionStar, ActionArchive, ActionRescueFromSpam} {
		assert.True(t, action.Valid(), string(action))
	}
	assert.False(t, EngagementAction("forward").Valid())
	assert.False(t, EngagementAction("").Valid())
}
