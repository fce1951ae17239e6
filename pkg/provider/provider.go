package provider

import "context"

// Provider abstracts a translation backend. The interface is
// protocol-agnostic: each adapter handles its own backend protocol
// (chat completions, generative content SSE, dedicated translation
// endpoints) internally.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// All per-call state is call-scoped; the only instance-shared mutable state
// an adapter carries is its memoized model-limits cache.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// Translate performs a single-shot translation. It blocks until the
	// full response arrives or the call fails with a classified error.
	Translate(ctx context.Context, req *Request) (*Result, error)

	// StreamTranslate performs an incremental translation. The returned
	// channel delivers StreamEvent values and is closed by the adapter
	// when the stream completes or fails. Partial events carry the
	// accumulated sanitized text, strictly growing across events; the
	// terminal event carries either the final Result or a classified
	// error. The channel is buffered; a slow consumer applies
	// back-pressure to the stream consumption loop.
	StreamTranslate(ctx context.Context, req *Request) (<-chan StreamEvent, error)

	// CountTokens asks the backend to count the tokens of the request
	// content. Backends without a counting endpoint return ErrNoCounter.
	CountTokens(ctx context.Context, req *Request) (int, error)

	// EstimateTokens is the pure local fallback heuristic for backends
	// without a counting endpoint.
	EstimateTokens(text string) int

	// ListModels returns available models from the backend. Discovery is
	// best-effort: failures are logged and yield an empty list.
	ListModels(ctx context.Context) []ModelInfo

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
