// Package budget computes the output-token ceiling requested from a
// translation backend for a single call.
//
// Vendor output ceilings vary by model family (8192 for older and lite
// models, 65536 for newer ones) and translated text can expand relative to
// the source, so the planner balances three constraints: never request more
// than the model's output limit will honor, keep a safety margin below that
// limit, and keep headroom for the backend's thinking/reasoning feature
// which consumes from the same token pool.
package budget

// ModelLimits describes the token limits of a backend model. Input limit
// zero means the backend did not report one.
type ModelLimits struct {
	InputTokenLimit  int
	OutputTokenLimit int
}

// Params carries the per-call inputs to the planner.
type Params struct {
	// MaxOutputTokens is the configured cap for this adapter instance.
	// Zero means "no configured cap".
	MaxOutputTokens int

	// ThinkingBudget is the declared reasoning reservation. Zero disables
	// thinking; -1 enables dynamic thinking with no fixed reservation;
	// positive values reserve that many tokens.
	ThinkingBudget int

	// InputTokens is the estimated token count of the request content.
	InputTokens int
}

// Plan is the computed per-call generation budget. Never persisted.
type Plan struct {
	// OutputCeiling is the visible-output token ceiling.
	OutputCeiling int

	// ThinkingReserve is the fixed reservation for reasoning tokens.
	ThinkingReserve int

	// TotalRequested is the max-token value sent on the wire:
	// OutputCeiling + ThinkingReserve, never above the model output limit.
	TotalRequested int
}

const (
	// minOutput is the floor below which requesting output is pointless.
	minOutput = 1024

	// proportionalFloor is the minimum ceiling applied by the
	// content-proportional heuristic.
	proportionalFloor = 8192

	// expansionFactor accounts for translated text growing relative to
	// the source.
	expansionFactor = 3.5
)

// DefaultOutputLimit is assumed when a backend reports no output limit.
const DefaultOutputLimit = 8192

// Compute derives the generation budget for one call.
func Compute(limits ModelLimits, p Params) Plan {
	if limits.OutputTokenLimit <= 0 {
		limits.OutputTokenLimit = DefaultOutputLimit
	}

	safetyMargin := limits.OutputTokenLimit * 5 / 100

	reserve := 0
	if p.ThinkingBudget > 0 {
		reserve = p.ThinkingBudget
	}

	available := limits.OutputTokenLimit - safetyMargin - reserve
	if p.MaxOutputTokens > 0 && p.MaxOutputTokens < available {
		available = p.MaxOutputTokens
	}
	if available < minOutput {
		available = minOutput
	}

	ceiling := available
	if p.ThinkingBudget == 0 {
		// Thinking disabled: a content-proportional cap is safe because
		// no reasoning tokens compete for the pool.
		proportional := int(float64(p.InputTokens) * expansionFactor)
		if proportional < proportionalFloor {
			proportional = proportionalFloor
		}
		if proportional < ceiling {
			ceiling = proportional
		}
	}

	// The wire value must stay within what the model will honor, even
	// when the floors above pushed past a small output limit.
	if reserve >= limits.OutputTokenLimit {
		reserve = limits.OutputTokenLimit - 1
	}
	if ceiling+reserve > limits.OutputTokenLimit {
		ceiling = limits.OutputTokenLimit - reserve
	}
	if ceiling < 1 {
		ceiling = 1
	}

	return Plan{
		OutputCeiling:   ceiling,
		ThinkingReserve: reserve,
		TotalRequested:  ceiling + reserve,
	}
}
