package openaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
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

// Provider implements the translation contract over the OpenAI-compatible
// Chat Completions protocol.
type Provider struct {
	name    string
	cfg     Config
	tpl     prompt.Template
	retrier *retry.Controller

	// client bounds single-shot calls with the configured timeout.
	// streamClient has no client timeout: streams are bounded by the
	// caller's context, not wall clock.
	client       *http.Client
	streamClient *http.Client
}

// New creates a Chat Completions adapter from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.Endpoint.BaseURL == "" {
		return nil, errors.New("openaichat: endpoint base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openaichat: model is required")
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
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
		Streaming: true,
		Prompting: true,
	}
}

// Translate performs a single-shot chat completion.
func (p *Provider) Translate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	if err := validateRequest(p.name, req); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := retry.Do(ctx, p.retrier, func(ctx context.Context) (*provider.Result, error) {
		return p.completeOnce(ctx, req)
	})
	observability.ObserveTranslation(p.name, "translate", observability.StatusOf(err), start)
	return res, err
}

func (p *Provider) completeOnce(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.post(ctx, p.client, p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, provider.MapHTTPError(p.name, resp)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, provider.WrapError(provider.KindMalformedResponse, p.name, err)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message == nil || cr.Choices[0].Message.Content == nil {
		return nil, provider.NewError(provider.KindMalformedResponse, p.name, "response carried no choices")
	}

	text := sanitize.Clean(*cr.Choices[0].Message.Content)

	var reason provider.FinishReason
	if fr := cr.Choices[0].FinishReason; fr != nil && *fr != "" {
		reason = mapFinishReason(*fr)
	}
	if err := provider.JudgeFinish(p.name, reason, len(text), len(req.Content)); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, provider.NewError(provider.KindMalformedResponse, p.name, "response carried no text")
	}

	if cr.Usage != nil {
		observability.ProviderTokensTotal.WithLabelValues(p.name, "input").Add(float64(cr.Usage.PromptTokens))
		observability.ProviderTokensTotal.WithLabelValues(p.name, "output").Add(float64(cr.Usage.CompletionTokens))
	}
	return &provider.Result{Text: text}, nil
}

// StreamTranslate performs an incremental chat completion over SSE.
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

		// Once a partial has been delivered the caller holds text that
		// later events may only extend, so a mid-stream failure must not
		// restart the stream from scratch.
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
	resp, err := p.post(ctx, p.streamClient, p.buildRequest(req, true))
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

// CountTokens is unsupported: the Chat Completions protocol has no
// counting endpoint.
func (p *Provider) CountTokens(ctx context.Context, req *provider.Request) (int, error) {
	return 0, provider.ErrNoCounter
}

func (p *Provider) EstimateTokens(text string) int {
	return budget.EstimateTokens(text)
}

// ListModels queries GET /models. Best-effort: failures yield an empty
// list.
func (p *Provider) ListModels(ctx context.Context) []provider.ModelInfo {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint.BaseURL+"/models", nil)
	if err != nil {
		return nil
	}
	p.setHeaders(httpReq)
	resp, err := p.client.Do(httpReq)
	if err != nil {
		debug.Log("providers", "model discovery failed", "provider", p.name, "error", err.Error())
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		debug.Log("providers", "model discovery failed", "provider", p.name, "status", resp.StatusCode)
		return nil
	}

	var models chatModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		debug.Log("providers", "model discovery failed", "provider", p.name, "error", err.Error())
		return nil
	}
	out := make([]provider.ModelInfo, 0, len(models.Data))
	for _, m := range models.Data {
		out = append(out, provider.ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return out
}

func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	p.streamClient.CloseIdleConnections()
	return nil
}

// buildRequest assembles the wire request: instruction template as the
// system message, subtitle content as the user message, max_tokens from
// the budget planner.
func (p *Provider) buildRequest(req *provider.Request, streaming bool) *chatRequest {
	tpl := p.tpl
	if req.PromptTemplate != "" {
		tpl = prompt.New(req.PromptTemplate)
	}

	plan := budget.Compute(
		budget.ModelLimits{OutputTokenLimit: p.cfg.OutputTokenLimit},
		budget.Params{
			MaxOutputTokens: p.cfg.MaxOutputTokens,
			InputTokens:     budget.EstimateTokens(req.Content),
		},
	)
	debug.Log("budget", "computed generation budget",
		"provider", p.name,
		"max_tokens", plan.TotalRequested,
	)

	return &chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: tpl.Render(req.SourceLanguage, req.TargetLanguage)},
			{Role: "user", Content: req.Content},
		},
		Temperature: p.cfg.Params.Temperature,
		TopP:        p.cfg.Params.TopP,
		MaxTokens:   plan.TotalRequested,
		Stream:      streaming,
	}
}

func (p *Provider) post(ctx context.Context, client *http.Client, payload *chatRequest) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, provider.WrapError(provider.KindFatal, p.name, fmt.Errorf("encoding request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, provider.WrapError(provider.KindFatal, p.name, err)
	}
	p.setHeaders(httpReq)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, provider.MapNetworkError(p.name, err)
	}
	return resp, nil
}

func (p *Provider) setHeaders(r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		r.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}

// validateRequest rejects requests the backend would reject anyway, with
// a classification the retry controller will not re-attempt.
func validateRequest(name string, req *provider.Request) error {
	if req == nil || req.Content == "" {
		return provider.NewError(provider.KindFatal, name, "request content is empty")
	}
	if req.TargetLanguage == "" {
		return provider.NewError(provider.KindFatal, name, "target language is required")
	}
	return nil
}
