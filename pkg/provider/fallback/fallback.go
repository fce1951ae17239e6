// Package fallback composes two providers into one: every operation tries
// the primary first and fails over to the secondary. The composite
// implements the provider contract itself, so chains nest.
package fallback

import (
	"context"
	"errors"
	"fmt"

	"github.com/sublate/sublate/pkg/debug"
	"github.com/sublate/sublate/pkg/observability"
	"github.com/sublate/sublate/pkg/provider"
)

// Chain is a provider that delegates to primary and fails over to
// secondary.
type Chain struct {
	primary   provider.Provider
	secondary provider.Provider
}

// New composes primary and secondary into a Chain.
func New(primary, secondary provider.Provider) *Chain {
	return &Chain{primary: primary, secondary: secondary}
}

// Name combines both provider names.
func (c *Chain) Name() string {
	return c.primary.Name() + "+" + c.secondary.Name()
}

// Capabilities is the union of both providers' capabilities: the chain can
// serve a feature if either side can.
func (c *Chain) Capabilities() provider.Capabilities {
	p, s := c.primary.Capabilities(), c.secondary.Capabilities()
	return provider.Capabilities{
		Streaming:     p.Streaming || s.Streaming,
		TokenCounting: p.TokenCounting || s.TokenCounting,
		Prompting:     p.Prompting || s.Prompting,
		Thinking:      p.Thinking || s.Thinking,
	}
}

// Translate tries the primary, then the secondary. Context cancellation is
// never failed over: the caller is gone either way.
func (c *Chain) Translate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	res, primaryErr := c.primary.Translate(ctx, req)
	if primaryErr == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, primaryErr
	}

	c.activate(primaryErr)
	res, secondaryErr := c.secondary.Translate(ctx, req)
	if secondaryErr == nil {
		return res, nil
	}
	return nil, c.combined(primaryErr, secondaryErr)
}

// StreamTranslate pipes the primary's stream through. Failover happens only
// while no partial has been delivered; after the first partial the caller
// holds text the secondary could not extend, so the error is terminal.
func (c *Chain) StreamTranslate(ctx context.Context, req *provider.Request) (<-chan provider.StreamEvent, error) {
	primaryCh, err := c.primary.StreamTranslate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		primaryErr := err
		out := provider.NewStreamChannel()
		go func() {
			defer close(out)
			c.failoverStream(ctx, req, primaryErr, out)
		}()
		return out, nil
	}

	out := provider.NewStreamChannel()
	go func() {
		defer close(out)

		emitted := false
		for ev := range primaryCh {
			if ev.Type == provider.StreamError && !emitted && ctx.Err() == nil {
				c.failoverStream(ctx, req, ev.Err, out)
				return
			}
			if ev.Type == provider.StreamPartial {
				emitted = true
			}
			if !provider.Send(ctx, out, ev) {
				return
			}
		}
	}()
	return out, nil
}

// failoverStream finishes a failed stream from the secondary's single-shot
// path. Partial progress is given up on failover: the retrying Translate
// call either returns a complete result, replayed as one partial, or fails
// whole, so the caller never sees a second truncated stream.
func (c *Chain) failoverStream(ctx context.Context, req *provider.Request, primaryErr error, out chan<- provider.StreamEvent) {
	c.activate(primaryErr)

	res, err := c.secondary.Translate(ctx, req)
	if err != nil {
		provider.Send(ctx, out, provider.StreamEvent{Type: provider.StreamError, Err: c.combined(primaryErr, err)})
		return
	}
	if !provider.Send(ctx, out, provider.StreamEvent{Type: provider.StreamPartial, Text: res.Text}) {
		return
	}
	provider.Send(ctx, out, provider.StreamEvent{Type: provider.StreamDone, Result: res})
}

// CountTokens uses the primary's counter; the secondary covers only the
// capability gap, not primary failures.
func (c *Chain) CountTokens(ctx context.Context, req *provider.Request) (int, error) {
	n, err := c.primary.CountTokens(ctx, req)
	if !errors.Is(err, provider.ErrNoCounter) {
		return n, err
	}
	return c.secondary.CountTokens(ctx, req)
}

// EstimateTokens delegates to the primary's heuristic.
func (c *Chain) EstimateTokens(text string) int {
	return c.primary.EstimateTokens(text)
}

// ListModels returns the primary's catalog, or the secondary's when the
// primary has none.
func (c *Chain) ListModels(ctx context.Context) []provider.ModelInfo {
	if models := c.primary.ListModels(ctx); len(models) > 0 {
		return models
	}
	return c.secondary.ListModels(ctx)
}

// Close closes both providers.
func (c *Chain) Close() error {
	return errors.Join(c.primary.Close(), c.secondary.Close())
}

func (c *Chain) activate(primaryErr error) {
	observability.FallbackActivationsTotal.WithLabelValues(c.primary.Name(), c.secondary.Name()).Inc()
	debug.Log("fallback", "failing over to secondary",
		"from", c.primary.Name(),
		"to", c.secondary.Name(),
		"error", primaryErr.Error(),
	)
}

func (c *Chain) combined(primaryErr, secondaryErr error) error {
	return &CombinedError{
		PrimaryName:   c.primary.Name(),
		SecondaryName: c.secondary.Name(),
		Primary:       primaryErr,
		Secondary:     secondaryErr,
	}
}

// CombinedError reports that both providers in a chain failed. Both causes
// stay inspectable through errors.As/Is.
type CombinedError struct {
	PrimaryName   string
	SecondaryName string
	Primary       error
	Secondary     error
}

func (e *CombinedError) Error() string {
	return fmt.Sprintf("all providers failed: %s: %v; %s: %v",
		e.PrimaryName, e.Primary, e.SecondaryName, e.Secondary)
}

func (e *CombinedError) Unwrap() []error {
	return []error{e.Primary, e.Secondary}
}
