// Package provider defines the protocol-agnostic adapter contract for
// subtitle translation backends. Each adapter implementation (openaichat,
// gemini, deepl) handles its own wire protocol internally. The interface
// operates on sublate's own types (Request, Result, StreamEvent), keeping
// backend protocol details invisible to the caller.
package provider
