package fallback

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sublate/sublate/pkg/provider"
)

// fakeProvider is an in-memory Provider with scriptable outcomes.
type fakeProvider struct {
	name     string
	caps     provider.Capabilities
	text     string
	err      error
	tokens   int
	countErr error

	// calls counts Translate invocations, streamCalls counts
	// StreamTranslate invocations, so tests can tell the paths apart.
	calls       atomic.Int32
	streamCalls atomic.Int32

	// streamEvents overrides the emulated stream when set; streamErr makes
	// StreamTranslate fail before producing a channel.
	streamEvents []provider.StreamEvent
	streamErr    error
}

func (f *fakeProvider) Name() string                        { return f.name }
func (f *fakeProvider) Capabilities() provider.Capabilities { return f.caps }

func (f *fakeProvider) Translate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{Text: f.text}, nil
}

func (f *fakeProvider) StreamTranslate(ctx context.Context, req *provider.Request) (<-chan provider.StreamEvent, error) {
	f.streamCalls.Add(1)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.streamEvents != nil {
		ch := provider.NewStreamChannel()
		go func() {
			defer close(ch)
			for _, ev := range f.streamEvents {
				ch <- ev
			}
		}()
		return ch, nil
	}
	return provider.EmulateStream(ctx, f, req)
}

func (f *fakeProvider) CountTokens(ctx context.Context, req *provider.Request) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.tokens > 0 {
		return f.tokens, nil
	}
	return 0, provider.ErrNoCounter
}
func (f *fakeProvider) EstimateTokens(text string) int { return len(text) }
func (f *fakeProvider) ListModels(ctx context.Context) []provider.ModelInfo {
	if f.text == "" {
		return nil
	}
	return []provider.ModelInfo{{ID: f.name + "-model"}}
}
func (f *fakeProvider) Close() error { return nil }

var req = &provider.Request{Content: "Hello", TargetLanguage: "French"}

func TestTranslate_PrimarySucceeds(t *testing.T) {
	primary := &fakeProvider{name: "a", text: "Bonjour"}
	secondary := &fakeProvider{name: "b", text: "Salut"}
	c := New(primary, secondary)

	res, err := c.Translate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Bonjour" {
		t.Errorf("text = %q, want the primary's result", res.Text)
	}
	if secondary.calls.Load() != 0 {
		t.Error("secondary should not have been called")
	}
}

func TestTranslate_FailsOver(t *testing.T) {
	primary := &fakeProvider{name: "a", err: provider.NewError(provider.KindServiceUnavailable, "a", "down")}
	secondary := &fakeProvider{name: "b", text: "Salut"}
	c := New(primary, secondary)

	res, err := c.Translate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Salut" {
		t.Errorf("text = %q, want the secondary's result", res.Text)
	}
}

func TestTranslate_BothFail(t *testing.T) {
	primary := &fakeProvider{name: "a", err: provider.NewError(provider.KindServiceUnavailable, "a", "down")}
	secondary := &fakeProvider{name: "b", err: provider.NewError(provider.KindRateLimited, "b", "throttled")}
	c := New(primary, secondary)

	_, err := c.Translate(context.Background(), req)
	var combined *CombinedError
	if !errors.As(err, &combined) {
		t.Fatalf("err = %v, want CombinedError", err)
	}
	if combined.PrimaryName != "a" || combined.SecondaryName != "b" {
		t.Errorf("combined = %+v", combined)
	}
	for _, fragment := range []string{"down", "throttled", "a", "b"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q should mention %q", err, fragment)
		}
	}
	// Both causes stay inspectable.
	var pe *provider.Error
	if !errors.As(err, &pe) {
		t.Error("underlying provider error should unwrap")
	}
}

func TestTranslate_NoFailoverOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &fakeProvider{name: "a", err: provider.WrapError(provider.KindFatal, "a", context.Canceled)}
	secondary := &fakeProvider{name: "b", text: "Salut"}
	c := New(primary, secondary)

	_, err := c.Translate(ctx, req)
	if err == nil {
		t.Fatal("want error")
	}
	if secondary.calls.Load() != 0 {
		t.Error("secondary should not run for a cancelled caller")
	}
}

func TestStreamTranslate_FailsOverBeforePartials(t *testing.T) {
	primary := &fakeProvider{name: "a", streamEvents: []provider.StreamEvent{
		{Type: provider.StreamError, Err: provider.NewError(provider.KindServiceUnavailable, "a", "down")},
	}}
	// The secondary can stream natively, but failover must take its
	// single-shot path: Translate retries internally and either returns a
	// whole result or fails whole, never a second truncated stream.
	secondary := &fakeProvider{name: "b", text: "Salut", streamEvents: []provider.StreamEvent{
		{Type: provider.StreamPartial, Text: "Sa"},
		{Type: provider.StreamPartial, Text: "Salut"},
		{Type: provider.StreamDone, Result: &provider.Result{Text: "Salut"}},
	}}
	c := New(primary, secondary)

	ch, err := c.StreamTranslate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	var partials []string
	var last provider.StreamEvent
	for ev := range ch {
		if ev.Type == provider.StreamPartial {
			partials = append(partials, ev.Text)
		}
		last = ev
	}
	if len(partials) != 1 || partials[0] != "Salut" {
		t.Errorf("partials = %q, want exactly one full replay", partials)
	}
	if last.Type != provider.StreamDone || last.Result.Text != "Salut" {
		t.Errorf("terminal event = %+v, want done with the secondary's result", last)
	}
	if got := secondary.calls.Load(); got != 1 {
		t.Errorf("secondary Translate calls = %d, want 1", got)
	}
	if got := secondary.streamCalls.Load(); got != 0 {
		t.Errorf("secondary StreamTranslate calls = %d, want 0", got)
	}
}

func TestStreamTranslate_ImmediateFailureUsesSingleShot(t *testing.T) {
	primary := &fakeProvider{name: "a", streamErr: provider.NewError(provider.KindServiceUnavailable, "a", "down")}
	secondary := &fakeProvider{name: "b", text: "Salut"}
	c := New(primary, secondary)

	ch, err := c.StreamTranslate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	res, err := provider.Collect(ch)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Salut" {
		t.Errorf("text = %q, want the secondary's result", res.Text)
	}
	if got := secondary.streamCalls.Load(); got != 0 {
		t.Errorf("secondary StreamTranslate calls = %d, want 0", got)
	}
}

func TestStreamTranslate_NoFailoverAfterPartials(t *testing.T) {
	primary := &fakeProvider{name: "a", streamEvents: []provider.StreamEvent{
		{Type: provider.StreamPartial, Text: "Bon"},
		{Type: provider.StreamError, Err: provider.NewError(provider.KindTransientNetwork, "a", "reset")},
	}}
	secondary := &fakeProvider{name: "b", text: "Salut"}
	c := New(primary, secondary)

	ch, err := c.StreamTranslate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	_, err = provider.Collect(ch)
	if err == nil {
		t.Fatal("want the primary's error to propagate")
	}
	if secondary.calls.Load() != 0 || secondary.streamCalls.Load() != 0 {
		t.Error("secondary must not run once partials were delivered")
	}
}

func TestStreamTranslate_PipesPrimary(t *testing.T) {
	primary := &fakeProvider{name: "a", streamEvents: []provider.StreamEvent{
		{Type: provider.StreamPartial, Text: "Bon"},
		{Type: provider.StreamPartial, Text: "Bonjour"},
		{Type: provider.StreamDone, Result: &provider.Result{Text: "Bonjour"}},
	}}
	c := New(primary, &fakeProvider{name: "b"})

	ch, err := c.StreamTranslate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	var partials []string
	var last provider.StreamEvent
	for ev := range ch {
		if ev.Type == provider.StreamPartial {
			partials = append(partials, ev.Text)
		}
		last = ev
	}
	if len(partials) != 2 || partials[1] != "Bonjour" {
		t.Errorf("partials = %q", partials)
	}
	if last.Type != provider.StreamDone {
		t.Errorf("terminal event = %+v", last)
	}
}

func TestCountTokens_PrefersPrimary(t *testing.T) {
	c := New(&fakeProvider{name: "a", tokens: 10}, &fakeProvider{name: "b", tokens: 99})
	n, err := c.CountTokens(context.Background(), req)
	if err != nil || n != 10 {
		t.Errorf("count = %d, %v, want 10 from the primary", n, err)
	}
}

func TestCountTokens_FallsBack(t *testing.T) {
	c := New(&fakeProvider{name: "a"}, &fakeProvider{name: "b", tokens: 99})
	n, err := c.CountTokens(context.Background(), req)
	if err != nil || n != 99 {
		t.Errorf("count = %d, %v, want 99 from the secondary", n, err)
	}
}

func TestCountTokens_PrimaryFailureNotFailedOver(t *testing.T) {
	// Only the capability gap routes to the secondary; a failing counter on
	// the primary reports its error.
	primary := &fakeProvider{name: "a", countErr: provider.NewError(provider.KindServiceUnavailable, "a", "down")}
	c := New(primary, &fakeProvider{name: "b", tokens: 99})
	_, err := c.CountTokens(context.Background(), req)
	if provider.KindOf(err) != provider.KindServiceUnavailable {
		t.Errorf("err = %v, want the primary's failure", err)
	}
}

func TestCountTokens_NeitherCounts(t *testing.T) {
	c := New(&fakeProvider{name: "a"}, &fakeProvider{name: "b"})
	_, err := c.CountTokens(context.Background(), req)
	if !errors.Is(err, provider.ErrNoCounter) {
		t.Errorf("err = %v, want ErrNoCounter", err)
	}
}

func TestCapabilitiesUnion(t *testing.T) {
	c := New(
		&fakeProvider{name: "a", caps: provider.Capabilities{Streaming: true, Prompting: true}},
		&fakeProvider{name: "b", caps: provider.Capabilities{TokenCounting: true}},
	)
	caps := c.Capabilities()
	if !caps.Streaming || !caps.TokenCounting || !caps.Prompting || caps.Thinking {
		t.Errorf("capabilities = %+v", caps)
	}
}

func TestNameAndModels(t *testing.T) {
	c := New(&fakeProvider{name: "a"}, &fakeProvider{name: "b", text: "x"})
	if c.Name() != "a+b" {
		t.Errorf("name = %q", c.Name())
	}
	models := c.ListModels(context.Background())
	if len(models) != 1 || models[0].ID != "b-model" {
		t.Errorf("models = %+v, want the secondary's when the primary has none", models)
	}
}
