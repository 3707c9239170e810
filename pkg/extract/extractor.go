package extract

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alibaizhanov/mengram/pkg/llm"
)

//go:embed prompt.txt
var extractionPrompt string

const existingContextBlock = `
EXISTING ENTITIES FOR THIS USER (use same names, avoid duplicate facts):
%s
`

const (
	maxAttempts  = 3
	retryBackoff = 10 * time.Second
)

// Extractor drives LLM knowledge extraction from conversations.
type Extractor struct {
	llm     llm.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	backoff time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLimiter sets a rate limiter applied before each LLM call.
// Pass the limiter shared with the embedding client to bound total
// upstream traffic.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Extractor) { e.limiter = l }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// WithBackoff overrides the base retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(e *Extractor) { e.backoff = d }
}

// New creates an Extractor backed by the given LLM client.
func New(client llm.Client, opts ...Option) *Extractor {
	e := &Extractor{llm: client, logger: slog.Default(), backoff: retryBackoff}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs knowledge extraction over a conversation. existingContext,
// when non-empty, is injected into the prompt so the model reuses known
// entity names and skips already-stored facts.
//
// Transient LLM failures are retried with linear backoff. A response the
// parser cannot salvage yields an empty Result, not an error: a bad
// extraction must not lose the caller's conversation.
func (e *Extractor) Extract(ctx context.Context, conversation []llm.Message, existingContext string) (*Result, error) {
	prompt := buildPrompt(conversation, existingContext)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(attempt-1) * e.backoff
			e.logger.Warn("extraction retry",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", lastErr))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		raw, err := e.llm.Complete(ctx, prompt, "")
		if err != nil {
			lastErr = err
			continue
		}
		return e.parse(raw), nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}

// ExtractFromText treats free text as a single user turn.
func (e *Extractor) ExtractFromText(ctx context.Context, text string) (*Result, error) {
	return e.Extract(ctx, []llm.Message{{Role: llm.RoleUser, Content: text}}, "")
}

func buildPrompt(conversation []llm.Message, existingContext string) string {
	contextBlock := ""
	if existingContext != "" {
		contextBlock = fmt.Sprintf(existingContextBlock, existingContext)
	}
	r := strings.NewReplacer(
		"{{EXISTING_CONTEXT}}", contextBlock,
		"{{CONVERSATION}}", FormatConversation(conversation),
	)
	return r.Replace(extractionPrompt)
}

// FormatConversation renders conversation turns as "Role: content" blocks
// separated by blank lines, the form the extraction prompt expects.
func FormatConversation(conversation []llm.Message) string {
	lines := make([]string, 0, len(conversation))
	for _, msg := range conversation {
		role := "User"
		if msg.Role == llm.RoleAssistant {
			role = "Assistant"
		}
		lines = append(lines, role+": "+msg.Content)
	}
	return strings.Join(lines, "\n\n")
}
