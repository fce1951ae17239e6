// Package stream consumes incremental translation responses as byte
// streams, parses them into frames, and accumulates text deltas.
//
// A Processor is a per-call state machine (Idle, Receiving, Finalizing,
// Done/Failed). The transport feeds it raw chunks; complete frames are
// parsed through a vendor-supplied FrameParser and removed from the working
// buffer, leaving only a trailing partial frame. One corrupt frame never
// aborts an otherwise-valid stream.
//
// When the incremental pass produced no frames at all but bytes were
// received, finalization falls back to the recovery parser (recovery.go),
// which re-reads the raw buffer under three alternative framings.
package stream

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/sublate/sublate/pkg/debug"
	"github.com/sublate/sublate/pkg/provider"
	"github.com/sublate/sublate/pkg/sanitize"
)

// Framing selects how the byte stream is split into frames.
type Framing int

const (
	// FramingSSE splits on blank-line-delimited server-sent-event blocks
	// with a "data:" payload prefix per line.
	FramingSSE Framing = iota

	// FramingJSONLines splits on newline-delimited JSON records.
	FramingJSONLines
)

// Frame is one parsed unit of a streamed response, normalized across
// vendor wire formats.
type Frame struct {
	// TextDelta is incremental translated text, possibly empty.
	TextDelta string

	// FinishReason is the normalized terminal signal, empty until the
	// backend reports one.
	FinishReason provider.FinishReason

	// BlockReason is vendor block metadata (prompt feedback), if present.
	BlockReason string

	// SafetyRatings are vendor safety annotations, if present.
	SafetyRatings []string
}

// FrameParser converts one raw frame payload into a Frame. Implementations
// are vendor-specific; a parse failure marks the frame malformed and the
// processor skips it.
type FrameParser interface {
	ParseFrame(data []byte) (Frame, error)
}

// doneSentinel terminates OpenAI-style SSE streams.
const doneSentinel = "[DONE]"

type procState int

const (
	stateIdle procState = iota
	stateReceiving
	stateFinalizing
	stateDone
	stateFailed
)

// Processor accumulates one streaming call. Not safe for concurrent use;
// exactly one Processor exists per in-flight streaming call and it is
// discarded at call completion.
type Processor struct {
	name    string
	framing Framing
	parser  FrameParser

	// onText receives the accumulated sanitized text after each frame
	// that carried a delta. Invocations are strictly growing in content
	// length within the call.
	onText func(sanitized string)

	state       procState
	raw         bytes.Buffer // full copy, kept for recovery
	buf         []byte       // working buffer with the trailing partial frame
	aggregated  strings.Builder
	lastEmitted string
	frames      int
	finish      provider.FinishReason
	blockReason string
	safety      []string
	recovered   string // recovery strategy that salvaged the stream, if any
}

// NewProcessor creates a processor for one streaming call. onText may be
// nil for callers that only need the final text.
func NewProcessor(name string, framing Framing, parser FrameParser, onText func(string)) *Processor {
	return &Processor{
		name:    name,
		framing: framing,
		parser:  parser,
		onText:  onText,
		state:   stateIdle,
	}
}

// Feed appends a transport chunk and parses any frames completed by it.
func (p *Processor) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if p.state == stateIdle {
		p.state = stateReceiving
	}
	p.raw.Write(chunk)
	p.buf = append(p.buf, chunk...)
	p.drainCompleteFrames()
}

// drainCompleteFrames extracts and handles every complete frame currently
// in the working buffer.
func (p *Processor) drainCompleteFrames() {
	switch p.framing {
	case FramingSSE:
		for {
			idx := indexBlankLine(p.buf)
			if idx.start < 0 {
				return
			}
			block := p.buf[:idx.start]
			p.buf = p.buf[idx.end:]
			if payload := ssePayload(block); len(payload) > 0 {
				p.handleFrame(payload)
			}
		}
	case FramingJSONLines:
		for {
			nl := bytes.IndexByte(p.buf, '\n')
			if nl < 0 {
				return
			}
			line := bytes.TrimSpace(p.buf[:nl])
			p.buf = p.buf[nl+1:]
			if len(line) > 0 {
				p.handleFrame(line)
			}
		}
	}
}

// handleFrame parses one frame payload and folds it into the stream state.
// Malformed frames are logged and skipped.
func (p *Processor) handleFrame(payload []byte) {
	if string(bytes.TrimSpace(payload)) == doneSentinel {
		return
	}

	debug.Trace("streaming", "frame", "provider", p.name, "data", string(payload))

	frame, err := p.parser.ParseFrame(payload)
	if err != nil {
		debug.Log("streaming", "skipping malformed frame",
			"provider", p.name,
			"error", err.Error(),
			"data", debug.Truncate(string(payload), 200),
		)
		return
	}
	p.frames++

	if frame.FinishReason != "" {
		p.finish = frame.FinishReason
	}
	if frame.BlockReason != "" {
		p.blockReason = frame.BlockReason
	}
	if len(frame.SafetyRatings) > 0 {
		p.safety = frame.SafetyRatings
	}

	if frame.TextDelta != "" {
		p.aggregated.WriteString(frame.TextDelta)
		p.emit()
	}
}

// emit delivers the accumulated sanitized text if it grew since the last
// delivery. Sanitizing can momentarily shrink the text (a fence marker
// completing across chunks), so the growth check is on the sanitized form.
func (p *Processor) emit() {
	if p.onText == nil {
		return
	}
	sanitized := sanitize.Clean(p.aggregated.String())
	if len(sanitized) > len(p.lastEmitted) {
		p.lastEmitted = sanitized
		p.onText(sanitized)
	}
}

// Finalize ends the stream: the trailing partial frame is parsed as a last
// attempt, the recovery parser runs if nothing parsed at all, and the
// finish-reason disqualification table is applied. inputLen is the byte
// length of the request content, used for the truncation ratio.
//
// On success the final sanitized text is returned; on failure a classified
// provider error.
func (p *Processor) Finalize(inputLen int) (string, error) {
	p.state = stateFinalizing

	// Last attempt on a still-buffered partial frame.
	if trailing := bytes.TrimSpace(p.buf); len(trailing) > 0 {
		if payload := ssePayload(trailing); len(payload) > 0 {
			p.handleFrame(payload)
		} else {
			p.handleFrame(trailing)
		}
		p.buf = nil
	}

	// Bytes arrived but nothing parsed: protocol mismatch or a proxy that
	// rebuffered the frames. Try the recovery strategies before failing.
	if p.frames == 0 && p.raw.Len() > 0 {
		p.recover()
	}

	text := sanitize.Clean(p.aggregated.String())

	if p.blockReason != "" {
		p.state = stateFailed
		msg := "generation blocked: " + p.blockReason
		if len(p.safety) > 0 {
			msg += " (" + strings.Join(p.safety, ", ") + ")"
		}
		return "", provider.NewError(provider.KindContentBlocked, p.name, msg)
	}

	if err := provider.JudgeFinish(p.name, p.finish, len(text), inputLen); err != nil {
		p.state = stateFailed
		return "", err
	}

	if text == "" {
		p.state = stateFailed
		if p.raw.Len() == 0 {
			return "", provider.NewError(provider.KindMalformedResponse, p.name, "stream ended without any data")
		}
		return "", provider.NewError(provider.KindMalformedResponse, p.name, "no parsable frames in stream")
	}

	p.state = stateDone
	return text, nil
}

// recover re-reads the raw buffer under the alternative framings and folds
// any salvaged frames into the stream state.
func (p *Processor) recover() {
	raw := p.raw.Bytes()
	for _, strategy := range Strategies {
		frames := strategy.Split(raw)
		parsed := 0
		for _, f := range frames {
			before := p.frames
			p.handleFrame(f)
			if p.frames > before {
				parsed++
			}
		}
		if parsed > 0 {
			p.recovered = strategy.Name
			slog.Info("stream recovered with fallback framing",
				"provider", p.name,
				"strategy", strategy.Name,
				"frames", parsed,
			)
			return
		}
	}
}

// RecoveredWith returns the name of the recovery strategy that salvaged
// the stream, or "" when the incremental pass succeeded.
func (p *Processor) RecoveredWith() string { return p.recovered }

// blankLineIndex locates the first blank-line delimiter ("\n\n" or
// "\r\n\r\n") in b.
type blankLineIndex struct{ start, end int }

func indexBlankLine(b []byte) blankLineIndex {
	lf := bytes.Index(b, []byte("\n\n"))
	crlf := bytes.Index(b, []byte("\r\n\r\n"))
	switch {
	case lf < 0 && crlf < 0:
		return blankLineIndex{-1, -1}
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return blankLineIndex{crlf, crlf + 4}
	default:
		return blankLineIndex{lf, lf + 2}
	}
}

// ssePayload extracts the joined "data:" payload lines from one SSE block.
// Lines without the data prefix (comments, event names) are dropped. An
// empty result means the block carried no payload.
func ssePayload(block []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(block, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		rest, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		rest = bytes.TrimPrefix(rest, []byte(" "))
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, rest...)
	}
	return out
}
