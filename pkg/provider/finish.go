package provider

import "log/slog"

// FinishReason is the normalized terminal status of a generation, mapped
// from each vendor's native vocabulary.
type FinishReason string

const (
	// FinishStop is natural completion.
	FinishStop FinishReason = "STOP"

	// FinishSafety means the content was filtered by safety heuristics.
	FinishSafety FinishReason = "SAFETY"

	// FinishProhibited means the content was blocked as prohibited.
	FinishProhibited FinishReason = "PROHIBITED_CONTENT"

	// FinishRecitation means the output was blocked by copyright or
	// recitation heuristics.
	FinishRecitation FinishReason = "RECITATION"

	// FinishMaxTokens means generation was truncated by length.
	FinishMaxTokens FinishReason = "MAX_TOKENS"

	// FinishOther is an unrecognized vendor-specific reason.
	FinishOther FinishReason = "OTHER"
)

// maxTokensMinRatio is the output/input length percentage at or below which
// a MAX_TOKENS truncation disqualifies the result. At exactly 30% the
// result is rejected; above it the truncated text is returned.
const maxTokensMinRatio = 30

// JudgeFinish applies the disqualification table to a finished generation
// and returns a classified error, or nil when the aggregated output stands.
//
//	STOP                        never disqualifies
//	SAFETY / PROHIBITED_CONTENT content_blocked
//	RECITATION                  content_blocked
//	MAX_TOKENS                  token_budget_exceeded when output length is
//	                            at or below 30% of the input length
//	OTHER                       soft success when text is non-empty
func JudgeFinish(name string, reason FinishReason, outputLen, inputLen int) *Error {
	switch reason {
	case FinishStop, "":
		return nil

	case FinishSafety, FinishProhibited:
		return NewError(KindContentBlocked, name, "generation blocked by content safety filters")

	case FinishRecitation:
		return NewError(KindContentBlocked, name, "generation blocked by recitation heuristics")

	case FinishMaxTokens:
		if inputLen > 0 && outputLen*100 <= inputLen*maxTokensMinRatio {
			return NewError(KindTokenBudgetExceeded, name, "generation truncated with negligible output")
		}
		slog.Warn("generation truncated by token limit, keeping partial output",
			"provider", name,
			"output_len", outputLen,
			"input_len", inputLen,
		)
		return nil

	default:
		if outputLen == 0 {
			return NewError(KindMalformedResponse, name, "generation ended with unknown finish reason and no output")
		}
		slog.Warn("unknown finish reason, treating as soft success",
			"provider", name,
			"finish_reason", string(reason),
		)
		return nil
	}
}
