package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.0-flash"

// Gemini implements [Client] using the Google GenAI API.
type Gemini struct {
	client *genai.Client
	model  string
	temp   float32
}

var _ Client = (*Gemini)(nil)

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	o := options{model: geminiDefaultModel}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini: %w", err)
	}
	return &Gemini{client: client, model: o.model, temp: o.temperature}, nil
}

// Complete sends a single prompt and returns the completion text.
func (g *Gemini) Complete(ctx context.Context, prompt, system string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	return g.send(ctx, contents, orDefault(system, defaultExtractionSystem))
}

// Chat sends a multi-turn conversation and returns the reply text.
func (g *Gemini) Chat(ctx context.Context, messages []Message, system string) (string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return g.send(ctx, contents, orDefault(system, defaultChatSystem))
}

func (g *Gemini) send(ctx context.Context, contents []*genai.Content, system string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temp),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(system)},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("llm: gemini: %w", err)
	}
	return resp.Text(), nil
}
