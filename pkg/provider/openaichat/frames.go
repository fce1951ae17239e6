package openaichat

import (
	"encoding/json"
	"fmt"

	"github.com/sublate/sublate/pkg/provider"
	"github.com/sublate/sublate/pkg/stream"
)

// frameParser parses Chat Completions stream chunks. It accepts both the
// streaming delta shape and the full message shape, so the recovery pass
// can salvage a body that a proxy rebuffered into one non-streaming blob.
type frameParser struct{}

func (frameParser) ParseFrame(data []byte) (stream.Frame, error) {
	var chunk chatResponse
	if err := json.Unmarshal(data, &chunk); err != nil {
		return stream.Frame{}, fmt.Errorf("decoding chunk: %w", err)
	}
	if len(chunk.Choices) == 0 {
		// Usage-only trailing chunk.
		return stream.Frame{}, nil
	}

	choice := chunk.Choices[0]
	var frame stream.Frame
	if choice.Delta != nil && choice.Delta.Content != nil {
		frame.TextDelta = *choice.Delta.Content
	} else if choice.Message != nil && choice.Message.Content != nil {
		frame.TextDelta = *choice.Message.Content
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		frame.FinishReason = mapFinishReason(*choice.FinishReason)
	}
	return frame, nil
}

// mapFinishReason normalizes the Chat Completions finish_reason vocabulary.
func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishStop
	case "length":
		return provider.FinishMaxTokens
	case "content_filter":
		return provider.FinishProhibited
	default:
		return provider.FinishOther
	}
}
