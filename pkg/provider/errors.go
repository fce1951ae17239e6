package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// ErrorKind classifies a provider failure. The kind alone decides whether
// the retry controller may re-attempt the call.
type ErrorKind string

const (
	// KindTransientNetwork covers timeouts, connection resets, and DNS
	// failures. Retryable.
	KindTransientNetwork ErrorKind = "transient_network"

	// KindRateLimited maps HTTP 429. Retryable.
	KindRateLimited ErrorKind = "rate_limited"

	// KindServiceUnavailable maps HTTP 5xx. Retryable.
	KindServiceUnavailable ErrorKind = "service_unavailable"

	// KindContentBlocked means the backend refused the content on safety
	// or recitation grounds. Not retryable.
	KindContentBlocked ErrorKind = "content_blocked"

	// KindTokenBudgetExceeded means generation was truncated with
	// negligible output. Not retryable.
	KindTokenBudgetExceeded ErrorKind = "token_budget_exceeded"

	// KindMalformedResponse means no parsable candidates or frames were
	// found in the response. Not retryable.
	KindMalformedResponse ErrorKind = "malformed_response"

	// KindUnsupportedCapability means the requested operation is not
	// supported by this backend (e.g. streaming). Not retryable.
	KindUnsupportedCapability ErrorKind = "unsupported_capability"

	// KindFatal covers authentication, validation, and configuration
	// failures. Not retryable.
	KindFatal ErrorKind = "fatal"
)

// retryable reports whether errors of this kind may be re-attempted.
func (k ErrorKind) retryable() bool {
	switch k {
	case KindTransientNetwork, KindRateLimited, KindServiceUnavailable:
		return true
	}
	return false
}

// Error is the classified failure every adapter raises. It crosses the
// adapter/decorator boundary and is never silently swallowed.
type Error struct {
	// Kind classifies the failure and drives retry policy.
	Kind ErrorKind

	// Provider names the adapter that raised the error.
	Provider string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the retry controller may re-attempt.
func (e *Error) Retryable() bool { return e.Kind.retryable() }

// Code returns the stable classification string callers use to render
// distinct user-facing messages (notably content_blocked and
// token_budget_exceeded).
func (e *Error) Code() string { return string(e.Kind) }

// NewError builds a classified provider error.
func NewError(kind ErrorKind, name, message string) *Error {
	return &Error{Kind: kind, Provider: name, Message: message}
}

// WrapError builds a classified provider error around a cause.
func WrapError(kind ErrorKind, name string, cause error) *Error {
	return &Error{Kind: kind, Provider: name, Message: cause.Error(), Cause: cause}
}

// ErrNoCounter is returned by CountTokens on backends without a counting
// endpoint. Callers fall back to EstimateTokens.
var ErrNoCounter = errors.New("provider has no token counting endpoint")

// IsRetryable reports whether err is a provider error of a retryable kind.
// Unclassified errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// KindOf extracts the classification of err, or KindFatal for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindFatal
}

// backendErrorEnvelope is the common {"error":{"message":...}} shape most
// JSON backends use for failures.
type backendErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ExtractErrorMessage tries to parse a response body as a backend error
// envelope and returns the message, or "" when none is found. At most 4 KiB
// of the body is read.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var env backendErrorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return ""
}

// MapHTTPError converts a non-2xx HTTP response into a classified error.
func MapHTTPError(name string, resp *http.Response) *Error {
	message := ExtractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		return NewError(KindRateLimited, name, message)

	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		}
		return NewError(KindServiceUnavailable, name, message)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "backend authentication failed"
		}
		return NewError(KindFatal, name, message)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)
		}
		return NewError(KindFatal, name, message)
	}
}

// MapNetworkError converts a transport-level failure (connection refused,
// timeout, reset, DNS) into a classified error. Timeouts and cancellation
// through deadline expiry classify as transient: the retry controller
// decides whether wall-clock budget remains for another attempt.
func MapNetworkError(name string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return WrapError(KindFatal, name, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindTransientNetwork, name, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return WrapError(KindTransientNetwork, name, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return WrapError(KindTransientNetwork, name, err)
	}
	// url.Error wraps most transport failures; anything that reached the
	// network layer is worth one more attempt.
	return WrapError(KindTransientNetwork, name, err)
}
