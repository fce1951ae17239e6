package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/sublate/sublate/pkg/provider"
	"github.com/sublate/sublate/pkg/stream"
)

// frameParser parses streamGenerateContent chunks. Each chunk is a full
// generateResponse with incremental candidate text.
type frameParser struct{}

func (frameParser) ParseFrame(data []byte) (stream.Frame, error) {
	var chunk generateResponse
	if err := json.Unmarshal(data, &chunk); err != nil {
		return stream.Frame{}, fmt.Errorf("decoding chunk: %w", err)
	}

	var frame stream.Frame
	if fb := chunk.PromptFeedback; fb != nil && fb.BlockReason != "" {
		frame.BlockReason = fb.BlockReason
		frame.SafetyRatings = describeRatings(fb.SafetyRatings)
	}
	if len(chunk.Candidates) == 0 {
		return frame, nil
	}

	cand := chunk.Candidates[0]
	frame.TextDelta = candidateText(cand)
	if cand.FinishReason != "" {
		frame.FinishReason = mapFinishReason(cand.FinishReason)
	}
	if len(cand.SafetyRatings) > 0 && frame.BlockReason != "" {
		frame.SafetyRatings = describeRatings(cand.SafetyRatings)
	}
	return frame, nil
}

// candidateText joins the text parts of a candidate.
func candidateText(c candidate) string {
	if c.Content == nil {
		return ""
	}
	var text string
	for _, p := range c.Content.Parts {
		text += p.Text
	}
	return text
}

// mapFinishReason normalizes the native finishReason vocabulary, which
// already matches the normalized form for the known values.
func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "STOP":
		return provider.FinishStop
	case "MAX_TOKENS":
		return provider.FinishMaxTokens
	case "SAFETY":
		return provider.FinishSafety
	case "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return provider.FinishProhibited
	case "RECITATION":
		return provider.FinishRecitation
	default:
		return provider.FinishOther
	}
}

func describeRatings(ratings []safetyRating) []string {
	out := make([]string, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, r.Category+"="+r.Probability)
	}
	return out
}
