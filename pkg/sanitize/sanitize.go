// Package sanitize normalizes translation output before it is returned
// to the caller or delivered as a partial update.
//
// LLM backends habitually wrap translated subtitles in fenced code blocks
// and mix line-ending conventions. Clean strips the fences, folds all line
// endings to "\n", and trims surrounding whitespace. The function is
// idempotent: Clean(Clean(s)) == Clean(s).
package sanitize

import "strings"

// Clean sanitizes a translated text fragment.
func Clean(s string) string {
	if s == "" {
		return ""
	}

	// Fold CRLF and bare CR to LF before any line-based processing.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	if strings.Contains(s, "```") {
		s = stripFences(s)
	}

	return strings.TrimSpace(s)
}

// stripFences removes lines that are fenced code-block markers, i.e. lines
// whose trimmed content starts with "```" (with or without a language tag).
// The fenced content itself is kept.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
