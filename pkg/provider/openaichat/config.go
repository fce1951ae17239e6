package openaichat

import (
	"time"

	"github.com/sublate/sublate/pkg/provider"
)

// Config holds the settings for one Chat Completions adapter instance.
// Resolved once at startup and passed by value; the adapter owns it for
// its process lifetime.
type Config struct {
	// Name identifies this adapter in errors, logs, and metrics.
	// Defaults to "openai".
	Name string

	// Endpoint is the approved backend base URL (SSRF-validated upstream
	// for user-supplied custom endpoints).
	Endpoint provider.Endpoint

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	// Model is the model identifier sent on every request. Required.
	Model string

	// Params are the sampling parameters (temperature, top_p).
	Params provider.GenerationParams

	// MaxOutputTokens caps the requested output. Zero means uncapped;
	// the budget planner still bounds it by OutputTokenLimit.
	MaxOutputTokens int

	// OutputTokenLimit is the model family's output ceiling. Chat
	// Completions backends expose no metadata endpoint for this, so it
	// is configuration. Zero selects the planner default.
	OutputTokenLimit int

	// PromptTemplate overrides the default instruction template.
	PromptTemplate string

	// Timeout bounds each single-shot attempt. Default 120s. Streaming
	// requests are bounded by context instead.
	Timeout time.Duration

	// MaxRetries is the retry count after the first failed attempt.
	// Negative selects the default (3).
	MaxRetries int

	// RetryBaseDelay is the first backoff delay. Default 1s.
	RetryBaseDelay time.Duration
}
