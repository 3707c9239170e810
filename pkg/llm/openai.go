package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAI implements [Client] using the OpenAI chat completions API.
// It works with any OpenAI-compatible endpoint via WithBaseURL.
type OpenAI struct {
	client *openai.Client
	model  string
	temp   float32
}

var _ Client = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI client.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	o := options{model: openAIDefaultModel}
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
	client := openai.NewClient(clientOpts...)

	return &OpenAI{client: &client, model: o.model, temp: o.temperature}
}

// Complete sends a single prompt and returns the completion text.
func (o *OpenAI) Complete(ctx context.Context, prompt, system string) (string, error) {
	return o.send(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(orDefault(system, defaultExtractionSystem)),
		openai.UserMessage(prompt),
	})
}

// Chat sends a multi-turn conversation and returns the reply text.
func (o *OpenAI) Chat(ctx context.Context, messages []Message, system string) (string, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	params = append(params, openai.SystemMessage(orDefault(system, defaultChatSystem)))
	for _, m := range messages {
		if m.Role == RoleAssistant {
			params = append(params, openai.AssistantMessage(m.Content))
		} else {
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return o.send(ctx, params)
}

func (o *OpenAI) send(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    messages,
		Temperature: openai.Float(float64(o.temp)),
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
