// Package debug provides category-based debug logging for sublate.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via SUBLATE_DEBUG env or config
//   - Levels (HOW MUCH detail): controlled via SUBLATE_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("providers", "request", "method", "POST", "url", url)
//	if debug.Enabled("streaming") { /* expensive formatting */ }
//
// Categories: providers, streaming, retry, fallback, budget, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug. TRACE is for wire-level dumps:
// stream frames, rebuffered bodies, raw provider payloads.
const LevelTrace = slog.LevelDebug - 4

// categories is the enabled category set. Written only by Init, read
// everywhere after, so no synchronization.
var categories map[string]bool

func init() {
	// Environment-only bootstrap so logging works before config loads.
	categories = parseCategories(os.Getenv("SUBLATE_DEBUG"))
}

// Init applies config-file values at startup. The SUBLATE_DEBUG and
// SUBLATE_LOG_LEVEL environment variables win over config.
func Init(configCategories string, configLevel string) {
	cats := os.Getenv("SUBLATE_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("SUBLATE_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}
	if level == "" {
		level = "INFO"
	}

	slogLevel := ParseLevel(level)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	})))
}

// Enabled reports whether output is active for a category. Guard expensive
// argument construction with it before calling Log or Trace.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug-level message when the category is enabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message when the category is enabled. Visible
// only at SUBLATE_LOG_LEVEL=TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
