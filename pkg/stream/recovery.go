package stream

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// Strategy is one framing hypothesis the recovery parser tries against a
// raw buffer that yielded no frames under the expected framing. Real-world
// proxies and CDNs rebuffer or merge SSE frames; failing outright on that
// would discard an otherwise-successful generation.
type Strategy struct {
	// Name identifies the strategy in logs and metrics.
	Name string

	// Split cuts the raw buffer into candidate frame payloads.
	Split func(raw []byte) [][]byte
}

// Strategies are applied in order until one yields at least one parsable
// frame. Each is independently testable.
var Strategies = []Strategy{
	{Name: "sse-blocks", Split: SplitSSEBlocks},
	{Name: "json-lines", Split: SplitJSONLines},
	{Name: "concatenated-json", Split: SplitConcatenatedJSON},
}

// SplitSSEBlocks splits on blank-line-delimited blocks, stripping the
// "data:" prefix per line. Blocks without any data line are dropped.
func SplitSSEBlocks(raw []byte) [][]byte {
	normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	var frames [][]byte
	for _, block := range bytes.Split(normalized, []byte("\n\n")) {
		if payload := ssePayload(block); len(payload) > 0 {
			frames = append(frames, payload)
		}
	}
	return frames
}

// SplitJSONLines splits on individual newlines, keeping lines that hold a
// JSON value. A leading "data:" prefix is tolerated so SSE payloads merged
// onto single lines still parse.
func SplitJSONLines(raw []byte) [][]byte {
	var frames [][]byte
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(bytes.TrimSuffix(line, []byte("\r")))
		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			line = bytes.TrimSpace(rest)
		}
		if len(line) == 0 {
			continue
		}
		if gjson.ValidBytes(line) {
			frames = append(frames, line)
		}
	}
	return frames
}

// SplitConcatenatedJSON recovers JSON objects emitted back to back with no
// delimiter at all ("{...}{...}"): the buffer is cut on "}{" boundaries and
// the stripped brace is reinserted on each piece. Pieces that still do not
// validate as JSON are dropped.
func SplitConcatenatedJSON(raw []byte) [][]byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	parts := bytes.Split(trimmed, []byte("}{"))
	if len(parts) == 1 {
		if gjson.ValidBytes(trimmed) {
			return [][]byte{trimmed}
		}
		return nil
	}

	var frames [][]byte
	for i, part := range parts {
		var piece []byte
		if i > 0 {
			piece = append(piece, '{')
		}
		piece = append(piece, part...)
		if i < len(parts)-1 {
			piece = append(piece, '}')
		}
		if gjson.ValidBytes(piece) {
			frames = append(frames, piece)
		}
	}
	return frames
}
