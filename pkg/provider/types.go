package provider

import "net/http"

// Request is a single translation request. Immutable for the duration of
// the call; adapters must not modify it.
type Request struct {
	// Content is the subtitle text to translate.
	Content string

	// SourceLanguage is the language of Content. Empty means "detect".
	SourceLanguage string

	// TargetLanguage is the language to translate into. Required.
	TargetLanguage string

	// PromptTemplate optionally overrides the adapter's default
	// instruction template. Supports the {target_language} and
	// {source_language} placeholders. Ignored by backends without
	// prompt templating.
	PromptTemplate string
}

// Result is the final translation. Text has passed through sanitize.Clean.
type Result struct {
	Text string
}

// Capabilities declares what features a backend supports. The fallback
// decorator uses this to decide where to delegate.
type Capabilities struct {
	// Streaming indicates native incremental output. Adapters without it
	// emulate StreamTranslate with a single partial event.
	Streaming bool

	// TokenCounting indicates a server-side token counting endpoint.
	TokenCounting bool

	// Prompting indicates the backend consumes an instruction prompt.
	// Dedicated translation endpoints do not.
	Prompting bool

	// Thinking indicates the backend supports a reasoning-token budget.
	Thinking bool
}

// ModelInfo describes a model served by a backend.
type ModelInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// Endpoint is an approved backend base URL. User-supplied custom endpoints
// are validated against SSRF upstream of this package; adapters consume the
// sanitized result as-is and never re-derive URLs from user input.
type Endpoint struct {
	// BaseURL is the scheme://host[:port][/path] prefix for all calls,
	// without a trailing slash.
	BaseURL string

	// Transport optionally pins a DNS-safe connection factory for the
	// endpoint. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// GenerationParams are the sampling knobs shared by generative backends.
// Nil pointers mean "backend default".
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	TopK        *int
}
