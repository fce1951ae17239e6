// Package gemini implements the translation contract over the Gemini
// generateContent API family.
//
// This is the fullest adapter: native SSE streaming, a server-side token
// counting endpoint, thinking budgets, and per-model token limits fetched
// from model metadata and memoized for the adapter lifetime.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sublate/sublate/pkg/budget"
	"github.com/sublate/sublate/pkg/debug"
	"github.com/sublate/sublate/pkg/observability"
	"github.com/sublate/sublate/pkg/prompt"
	"github.com/sublate/sublate/pkg/provider"
	"github.com/sublate/sublate/pkg/retry"
	"github.com/sublate/sublate/pkg/sanitize"
	"github.com/sublate/sublate/pkg/stream"
)

const defaultTimeout = 120 * time.Second

// Provider implements the translation contract against Gemini.
type Provider struct {
	name    string
	cfg     Config
	tpl     prompt.Template
	retrier *retry.Controller
	limits  budget.LimitsCache

	client       *http.Client
	streamClient *http.Client
}

// New creates a Gemini adapter from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.Endpoint.BaseURL == "" {
		return nil, errors.New("gemini: endpoint base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini: model is required")
	}
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := cfg.Endpoint.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	p := &Provider{
		name:         cfg.Name,
		cfg:          cfg,
		tpl:          prompt.New(cfg.PromptTemplate),
		client:       &http.Client{Transport: transport, Timeout: cfg.Timeout},
		streamClient: &http.Client{Transport: transport},
	}
	p.retrier = retry.New(cfg.MaxRetries, cfg.RetryBaseDelay)
	p.retrier.OnRetry = func(attempt int, err error) {
		observability.RetryAttemptsTotal.WithLabelValues(p.name).Inc()
		debug.Log("retry", "re-attempting after backoff",
			"provider", p.name,
			"attempt", attempt,
			"error", err.Error(),
		)
	}
	return p, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Streaming:     true,
		TokenCounting: true,
		Prompting:     true,
		Thinking:      true,
	}
}

// Translate performs a single-shot generateContent call.
func (p *Provider) Translate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	if err := validateRequest(p.name, req); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := retry.Do(ctx, p.retrier, func(ctx context.Context) (*provider.Result, error) {
		return p.generateOnce(ctx, req)
	})
	observability.ObserveTranslation(p.name, "translate", observability.StatusOf(err), start)
	return res, err
}

func (p *Provider) generateOnce(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.post(ctx, p.client, p.modelURL(":generateContent"), p.buildRequest(ctx, req))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, provider.MapHTTPError(p.name, resp)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, provider.WrapError(provider.KindMalformedResponse, p.name, err)
	}

	if fb := gr.PromptFeedback; fb != nil && fb.BlockReason != "" {
		msg := "generation blocked: " + fb.BlockReason
		if ratings := describeRatings(fb.SafetyRatings); len(ratings) > 0 {
			msg += " (" + strings.Join(ratings, ", ") + ")"
		}
		return nil, provider.NewError(provider.KindContentBlocked, p.name, msg)
	}
	if len(gr.Candidates) == 0 {
		return nil, provider.NewError(provider.KindMalformedResponse, p.name, "response carried no candidates")
	}

	cand := gr.Candidates[0]
	text := sanitize.Clean(candidateText(cand))

	var reason provider.FinishReason
	if cand.FinishReason != "" {
		reason = mapFinishReason(cand.FinishReason)
	}
	if err := provider.JudgeFinish(p.name, reason, len(text), len(req.Content)); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, provider.NewError(provider.KindMalformedResponse, p.name, "candidate carried no text")
	}

	if um := gr.UsageMetadata; um != nil {
		observability.ProviderTokensTotal.WithLabelValues(p.name, "input").Add(float64(um.PromptTokenCount))
		observability.ProviderTokensTotal.WithLabelValues(p.name, "output").Add(float64(um.CandidatesTokenCount))
	}
	return &provider.Result{Text: text}, nil
}

// StreamTranslate performs an incremental streamGenerateContent call over
// SSE.
func (p *Provider) StreamTranslate(ctx context.Context, req *provider.Request) (<-chan provider.StreamEvent, error) {
	if err := validateRequest(p.name, req); err != nil {
		return nil, err
	}

	ch := provider.NewStreamChannel()
	go func() {
		defer close(ch)
		observability.ActiveStreams.Inc()
		defer observability.ActiveStreams.Dec()
		start := time.Now()

		// Delivered partials may only be extended, never replaced, so a
		// mid-stream failure after the first partial is terminal.
		emitted := false
		rc := *p.retrier
		rc.IsRetryable = func(err error) bool {
			return !emitted && provider.IsRetryable(err)
		}

		res, err := retry.Do(ctx, &rc, func(ctx context.Context) (*provider.Result, error) {
			return p.streamOnce(ctx, req, func(text string) {
				emitted = true
				provider.Send(ctx, ch, provider.StreamEvent{Type: provider.StreamPartial, Text: text})
			})
		})

		observability.ObserveTranslation(p.name, "stream", observability.StatusOf(err), start)
		if err != nil {
			provider.Send(ctx, ch, provider.StreamEvent{Type: provider.StreamError, Err: err})
			return
		}
		provider.Send(ctx, ch, provider.StreamEvent{Type: provider.StreamDone, Result: res})
	}()
	return ch, nil
}

func (p *Provider) streamOnce(ctx context.Context, req *provider.Request, onText func(string)) (*provider.Result, error) {
	resp, err := p.post(ctx, p.streamClient, p.modelURL(":streamGenerateContent")+"?alt=sse", p.buildRequest(ctx, req))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, provider.MapHTTPError(p.name, resp)
	}

	proc := stream.NewProcessor(p.name, stream.FramingSSE, frameParser{}, onText)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			proc.Feed(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, provider.MapNetworkError(p.name, readErr)
		}
	}

	text, err := proc.Finalize(len(req.Content))
	if err != nil {
		return nil, err
	}
	if strategy := proc.RecoveredWith(); strategy != "" {
		observability.StreamRecoveriesTotal.WithLabelValues(p.name, strategy).Inc()
	}
	return &provider.Result{Text: text}, nil
}

// CountTokens calls the countTokens endpoint on the request content.
func (p *Provider) CountTokens(ctx context.Context, req *provider.Request) (int, error) {
	if req == nil || req.Content == "" {
		return 0, nil
	}
	payload := &countTokensRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Content}}}},
	}
	resp, err := p.post(ctx, p.client, p.modelURL(":countTokens"), payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, provider.MapHTTPError(p.name, resp)
	}

	var ct countTokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&ct); err != nil {
		return 0, provider.WrapError(provider.KindMalformedResponse, p.name, err)
	}
	return ct.TotalTokens, nil
}

func (p *Provider) EstimateTokens(text string) int {
	return budget.EstimateTokens(text)
}

// ListModels queries GET /models. Best-effort: failures yield an empty
// list.
func (p *Provider) ListModels(ctx context.Context) []provider.ModelInfo {
	resp, err := p.get(ctx, p.cfg.Endpoint.BaseURL+"/models")
	if err != nil {
		debug.Log("providers", "model discovery failed", "provider", p.name, "error", err.Error())
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		debug.Log("providers", "model discovery failed", "provider", p.name, "status", resp.StatusCode)
		return nil
	}

	var lm listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&lm); err != nil {
		debug.Log("providers", "model discovery failed", "provider", p.name, "error", err.Error())
		return nil
	}
	out := make([]provider.ModelInfo, 0, len(lm.Models))
	for _, m := range lm.Models {
		out = append(out, provider.ModelInfo{
			ID:   strings.TrimPrefix(m.Name, "models/"),
			Name: m.DisplayName,
		})
	}
	return out
}

func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	p.streamClient.CloseIdleConnections()
	return nil
}

// modelLimits returns the model's token limits, fetching the model
// metadata on first use. Fetch failures are not cached: the planner runs
// on its defaults and the next call retries the fetch.
func (p *Provider) modelLimits(ctx context.Context) budget.ModelLimits {
	if limits, ok := p.limits.Get(); ok {
		return limits
	}

	resp, err := p.get(ctx, p.modelURL(""))
	if err != nil {
		debug.Log("budget", "model metadata fetch failed", "provider", p.name, "error", err.Error())
		return budget.ModelLimits{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		debug.Log("budget", "model metadata fetch failed", "provider", p.name, "status", resp.StatusCode)
		return budget.ModelLimits{}
	}

	var meta modelMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		debug.Log("budget", "model metadata fetch failed", "provider", p.name, "error", err.Error())
		return budget.ModelLimits{}
	}

	limits := budget.ModelLimits{
		InputTokenLimit:  meta.InputTokenLimit,
		OutputTokenLimit: meta.OutputTokenLimit,
	}
	p.limits.Set(limits)
	debug.Log("budget", "model limits resolved",
		"provider", p.name,
		"model", p.cfg.Model,
		"input_limit", limits.InputTokenLimit,
		"output_limit", limits.OutputTokenLimit,
	)
	return limits
}

// buildRequest assembles the wire request: instruction template as the
// system instruction, subtitle content as the user turn, generation config
// from the budget planner.
func (p *Provider) buildRequest(ctx context.Context, req *provider.Request) *generateRequest {
	tpl := p.tpl
	if req.PromptTemplate != "" {
		tpl = prompt.New(req.PromptTemplate)
	}

	plan := budget.Compute(p.modelLimits(ctx), budget.Params{
		MaxOutputTokens: p.cfg.MaxOutputTokens,
		ThinkingBudget:  p.cfg.ThinkingBudget,
		InputTokens:     budget.EstimateTokens(req.Content),
	})
	debug.Log("budget", "computed generation budget",
		"provider", p.name,
		"output_ceiling", plan.OutputCeiling,
		"thinking_reserve", plan.ThinkingReserve,
		"max_output_tokens", plan.TotalRequested,
	)

	gc := &generationConfig{
		Temperature:     p.cfg.Params.Temperature,
		TopP:            p.cfg.Params.TopP,
		TopK:            p.cfg.Params.TopK,
		MaxOutputTokens: plan.TotalRequested,
	}
	if p.cfg.ThinkingBudget != 0 {
		// -1 requests dynamic thinking; positive values are the fixed
		// reserve already folded into MaxOutputTokens.
		budgetValue := p.cfg.ThinkingBudget
		if budgetValue > 0 {
			budgetValue = plan.ThinkingReserve
		}
		gc.ThinkingConfig = &thinkingConfig{ThinkingBudget: budgetValue}
	}

	system := tpl.Render(req.SourceLanguage, req.TargetLanguage)
	return &generateRequest{
		Contents:          []content{{Role: "user", Parts: []part{{Text: req.Content}}}},
		SystemInstruction: &content{Parts: []part{{Text: system}}},
		GenerationConfig:  gc,
	}
}

func (p *Provider) modelURL(suffix string) string {
	return p.cfg.Endpoint.BaseURL + "/models/" + p.cfg.Model + suffix
}

func (p *Provider) post(ctx context.Context, client *http.Client, url string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, provider.WrapError(provider.KindFatal, p.name, fmt.Errorf("encoding request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, provider.WrapError(provider.KindFatal, p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, provider.MapNetworkError(p.name, err)
	}
	return resp, nil
}

func (p *Provider) get(ctx context.Context, url string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)
	return p.client.Do(httpReq)
}

func validateRequest(name string, req *provider.Request) error {
	if req == nil || req.Content == "" {
		return provider.NewError(provider.KindFatal, name, "request content is empty")
	}
	if req.TargetLanguage == "" {
		return provider.NewError(provider.KindFatal, name, "target language is required")
	}
	return nil
}
