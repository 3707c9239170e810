package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "mistral"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("New() error = %v, want ErrUnknownProvider", err)
	}
}

func TestNewMissingAPIKey(t *testing.T) {
	for _, provider := range []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini} {
		_, err := New(context.Background(), Config{Provider: provider})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("New(%s) error = %v, want ErrMissingAPIKey", provider, err)
		}
	}
}

func TestNewOllamaNoKeyRequired(t *testing.T) {
	client, err := New(context.Background(), Config{Provider: ProviderOllama})
	if err != nil {
		t.Fatalf("New(ollama) error = %v", err)
	}
	if _, ok := client.(*Ollama); !ok {
		t.Fatalf("New(ollama) = %T, want *Ollama", client)
	}
}

func TestOllamaComplete(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "extracted"})
	}))
	defer srv.Close()

	c := NewOllama(WithBaseURL(srv.URL), WithModel("llama3.2"))
	out, err := c.Complete(context.Background(), "hello", "be terse")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "extracted" {
		t.Errorf("Complete() = %q, want %q", out, "extracted")
	}
	if gotPath != "/api/generate" {
		t.Errorf("request path = %q, want /api/generate", gotPath)
	}
	if gotBody["stream"] != false {
		t.Errorf("stream = %v, want false", gotBody["stream"])
	}
	if gotBody["system"] != "be terse" {
		t.Errorf("system = %v, want %q", gotBody["system"], "be terse")
	}
}

func TestOllamaChat(t *testing.T) {
	var gotBody struct {
		Messages []map[string]string `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("request path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "hi there"},
		})
	}))
	defer srv.Close()

	c := NewOllama(WithBaseURL(srv.URL))
	out, err := c.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "how are you"},
	}, "")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if out != "hi there" {
		t.Errorf("Chat() = %q, want %q", out, "hi there")
	}
	// System turn is injected first, then the conversation in order.
	if len(gotBody.Messages) != 4 {
		t.Fatalf("len(messages) = %d, want 4", len(gotBody.Messages))
	}
	if gotBody.Messages[0]["role"] != "system" {
		t.Errorf("messages[0].role = %q, want system", gotBody.Messages[0]["role"])
	}
	if gotBody.Messages[3]["content"] != "how are you" {
		t.Errorf("messages[3].content = %q, want %q", gotBody.Messages[3]["content"], "how are you")
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllama(WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), "hello", ""); err == nil {
		t.Fatal("Complete() error = nil, want non-nil on 404")
	}
}
