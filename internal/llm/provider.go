package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single prompt and returns the text completion
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the input for one completion
type CompletionRequest struct {
	// Prompt is the full user message (instructions plus document text)
	Prompt string

	// System is an optional system message
	System string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length; zero leaves it to the provider
	MaxTokens int
}

// CompletionResponse contains the model's raw text output
type CompletionResponse struct {
	// Text is the completion, trimmed of surrounding whitespace
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int

	// Truncated is set when the provider stopped at the token limit
	Truncated bool

	// Cached is set when the response was served from the completion cache
	Cached bool
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens caps response generation; zero means no cap where the API allows it
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Timeout:  60,
	}
}

// extractionTemplate asks for a bare JSON array of place/activity objects.
// %s is replaced with the document text.
const extractionTemplate = `You are an information extraction assistant.

Task:
- Read the following newspaper article text.
- Identify every place or street address mentioned and the activities that happen there.
- When several activities happen at one place, list each activity as its own entry.
- Normalize places so the same place always gets exactly the same label.
- Return ONLY a JSON array of objects with the keys:
  - "place_label": the standardized place or address
  - "activity": the activity happening at that place

Article text:
"""%s"""
`

// BuildExtractionPrompt embeds the document text in the extraction instructions
func BuildExtractionPrompt(text string) string {
	return fmt.Sprintf(extractionTemplate, text)
}

// resolveModel picks the request model, then the configured one, then fallback
func resolveModel(req CompletionRequest, cfg Config, fallback string) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	if m := strings.TrimSpace(cfg.Model); m != "" {
		return m
	}
	return fallback
}

// ResolveMaxTokens picks the request limit, then the configured one.
// Zero means uncapped.
func ResolveMaxTokens(req CompletionRequest, cfg Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 0
}

// secondsOr converts a timeout in seconds, using fallback when unset
func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
