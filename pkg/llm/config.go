package llm

import "net/http"

// options holds shared provider configuration.
type options struct {
	model       string
	baseURL     string
	maxTokens   int
	temperature float32
	httpClient  *http.Client
}

// Option configures a provider.
type Option func(*options)

// WithModel sets the model name. An empty value keeps the provider default.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL overrides the endpoint URL. An empty value keeps the default.
func WithBaseURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.baseURL = url
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithTemperature sets the sampling temperature. Extraction should stay at 0.
func WithTemperature(t float32) Option {
	return func(o *options) { o.temperature = t }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}
