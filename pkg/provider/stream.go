package provider

import "context"

// partialBufferSize is the capacity of stream event channels. A bounded
// buffer decouples the HTTP consumption loop from the caller while still
// applying back-pressure when the caller stalls.
const partialBufferSize = 16

// StreamEventType classifies a streaming event delivered to the caller.
type StreamEventType int

const (
	// StreamPartial carries the accumulated sanitized text so far.
	StreamPartial StreamEventType = iota

	// StreamDone terminates the stream with the final Result.
	StreamDone

	// StreamError terminates the stream with a classified error.
	StreamError
)

// StreamEvent is one event on a StreamTranslate channel. Within one call,
// Text across partial events is strictly growing: no event ever carries
// content shorter than a previous one.
type StreamEvent struct {
	Type StreamEventType

	// Text is the accumulated sanitized text (partial events).
	Text string

	// Result is the final translation (done events).
	Result *Result

	// Err is the classified failure (error events).
	Err error
}

// NewStreamChannel returns a bounded event channel sized for adapters.
func NewStreamChannel() chan StreamEvent {
	return make(chan StreamEvent, partialBufferSize)
}

// Send delivers ev unless ctx is cancelled first, reporting whether the
// event went out. Producers use it for every send so an abandoned consumer
// never strands the producing goroutine on a full channel.
func Send(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Collect drains a stream channel and returns the terminal result. It is
// the bridge from the streaming contract back to single-shot semantics.
func Collect(ch <-chan StreamEvent) (*Result, error) {
	var last StreamEvent
	for ev := range ch {
		last = ev
	}
	switch last.Type {
	case StreamDone:
		return last.Result, nil
	case StreamError:
		return nil, last.Err
	default:
		return nil, NewError(KindMalformedResponse, "", "stream ended without a terminal event")
	}
}

// StreamWithCallback runs StreamTranslate and invokes onPartial for every
// partial event, returning the final result. onPartial executes on the
// caller's goroutine in event order.
func StreamWithCallback(ctx context.Context, p Provider, req *Request, onPartial func(text string)) (*Result, error) {
	ch, err := p.StreamTranslate(ctx, req)
	if err != nil {
		return nil, err
	}
	var last StreamEvent
	for ev := range ch {
		if ev.Type == StreamPartial && onPartial != nil {
			onPartial(ev.Text)
		}
		last = ev
	}
	switch last.Type {
	case StreamDone:
		return last.Result, nil
	case StreamError:
		return nil, last.Err
	default:
		return nil, NewError(KindMalformedResponse, p.Name(), "stream ended without a terminal event")
	}
}

// EmulateStream implements StreamTranslate for backends without native
// streaming: the single-shot path runs once and the full result is
// delivered as one partial event followed by done.
func EmulateStream(ctx context.Context, p Provider, req *Request) (<-chan StreamEvent, error) {
	ch := NewStreamChannel()
	go func() {
		defer close(ch)
		res, err := p.Translate(ctx, req)
		if err != nil {
			Send(ctx, ch, StreamEvent{Type: StreamError, Err: err})
			return
		}
		if !Send(ctx, ch, StreamEvent{Type: StreamPartial, Text: res.Text}) {
			return
		}
		Send(ctx, ch, StreamEvent{Type: StreamDone, Result: res})
	}()
	return ch, nil
}
