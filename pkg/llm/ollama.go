package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaDefaultModel   = "llama3.2"
	ollamaDefaultTimeout = 30 * time.Second
)

// Ollama implements [Client] against a local Ollama server's HTTP API
// (/api/generate and /api/chat, non-streaming).
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ Client = (*Ollama)(nil)

// NewOllama creates an Ollama client.
func NewOllama(opts ...Option) *Ollama {
	o := options{
		model:   ollamaDefaultModel,
		baseURL: ollamaDefaultBaseURL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: ollamaDefaultTimeout}
	}
	return &Ollama{
		baseURL:    strings.TrimRight(o.baseURL, "/"),
		model:      o.model,
		httpClient: client,
	}
}

// Complete sends a single prompt and returns the completion text.
func (c *Ollama) Complete(ctx context.Context, prompt, system string) (string, error) {
	req := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"system": orDefault(system, defaultExtractionSystem),
		"stream": false,
	}
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Chat sends a multi-turn conversation and returns the reply text.
func (c *Ollama) Chat(ctx context.Context, messages []Message, system string) (string, error) {
	msgs := make([]map[string]string, 0, len(messages)+1)
	msgs = append(msgs, map[string]string{
		"role":    "system",
		"content": orDefault(system, defaultChatSystem),
	})
	for _, m := range messages {
		msgs = append(msgs, map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	req := map[string]any{
		"model":    c.model,
		"messages": msgs,
		"stream":   false,
	}
	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

func (c *Ollama) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llm: ollama: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("llm: ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm: ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm: ollama: unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: ollama: decode response: %w", err)
	}
	return nil
}
