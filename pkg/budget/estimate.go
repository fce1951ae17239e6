package budget

import "math"

// EstimateTokens is the local token-count heuristic used when a backend has
// no counting endpoint: roughly one token per three bytes of text, padded
// by 10% to stay on the safe side of real tokenizers.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text))/3.0) * 1.1)
}
