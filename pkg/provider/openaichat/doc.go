// Package openaichat implements the provider contract for OpenAI-compatible
// Chat Completions backends (OpenAI itself, OpenRouter, vLLM, LM Studio,
// and other servers speaking the same envelope). Streaming uses SSE frames
// with the [DONE] sentinel.
package openaichat
