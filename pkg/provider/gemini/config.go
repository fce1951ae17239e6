package gemini

import (
	"time"

	"github.com/sublate/sublate/pkg/provider"
)

// Config holds the settings for one Gemini adapter instance.
type Config struct {
	// Name identifies this adapter in errors, logs, and metrics.
	// Defaults to "gemini".
	Name string

	// Endpoint is the API base URL, e.g.
	// https://generativelanguage.googleapis.com/v1beta. Required.
	Endpoint provider.Endpoint

	// APIKey is sent as the x-goog-api-key header. Required.
	APIKey string

	// Model is the model identifier, e.g. "gemini-2.0-flash". Required.
	Model string

	// Params are the sampling parameters (temperature, top_p, top_k).
	Params provider.GenerationParams

	// MaxOutputTokens caps the requested output below the model limit.
	// Zero means "model limit only".
	MaxOutputTokens int

	// ThinkingBudget reserves reasoning tokens: -1 enables dynamic
	// thinking, 0 disables thinking, positive values reserve a fixed
	// amount alongside the output ceiling.
	ThinkingBudget int

	// PromptTemplate overrides the default instruction template.
	PromptTemplate string

	// Timeout bounds each single-shot attempt. Default 120s.
	Timeout time.Duration

	// MaxRetries is the retry count after the first failed attempt.
	// Negative selects the default (3).
	MaxRetries int

	// RetryBaseDelay is the first backoff delay. Default 1s.
	RetryBaseDelay time.Duration
}
