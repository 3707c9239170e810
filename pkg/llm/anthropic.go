package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicDefaultModel     = "claude-sonnet-4-20250514"
	anthropicDefaultMaxTokens = 4096
)

// Anthropic implements [Client] using the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
	temp      float32
}

var _ Client = (*Anthropic)(nil)

// NewAnthropic creates an Anthropic client.
func NewAnthropic(apiKey string, opts ...Option) *Anthropic {
	o := options{
		model:     anthropicDefaultModel,
		maxTokens: anthropicDefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(o.httpClient))
	}

	return &Anthropic{
		client:    anthropic.NewClient(clientOpts...),
		model:     o.model,
		maxTokens: o.maxTokens,
		temp:      o.temperature,
	}
}

// Complete sends a single prompt and returns the completion text.
func (a *Anthropic) Complete(ctx context.Context, prompt, system string) (string, error) {
	return a.send(ctx, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}, orDefault(system, defaultExtractionSystem))
}

// Chat sends a multi-turn conversation and returns the reply text.
func (a *Anthropic) Chat(ctx context.Context, messages []Message, system string) (string, error) {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(block))
		} else {
			params = append(params, anthropic.NewUserMessage(block))
		}
	}
	return a.send(ctx, params, orDefault(system, defaultChatSystem))
}

func (a *Anthropic) send(ctx context.Context, messages []anthropic.MessageParam, system string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(a.maxTokens),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    messages,
		Temperature: anthropic.Float(float64(a.temp)),
	})
	if err != nil {
		return "", fmt.Errorf("llm: anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
