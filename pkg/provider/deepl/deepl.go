// Package deepl implements the translation contract over the DeepL v2
// REST API.
//
// DeepL is a dedicated translation service: no instruction prompt, no
// streaming, no token counting, no thinking. StreamTranslate is emulated
// with a single partial event so callers can treat all backends uniformly.
package deepl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sublate/sublate/pkg/budget"
	"github.com/sublate/sublate/pkg/debug"
	"github.com/sublate/sublate/pkg/observability"
	"github.com/sublate/sublate/pkg/provider"
	"github.com/sublate/sublate/pkg/retry"
	"github.com/sublate/sublate/pkg/sanitize"
)

const defaultTimeout = 60 * time.Second

// Provider implements the translation contract against DeepL.
type Provider struct {
	name    string
	cfg     Config
	retrier *retry.Controller
	client  *http.Client
}

// Config holds the settings for one DeepL adapter instance.
type Config struct {
	// Name identifies this adapter in errors, logs, and metrics.
	// Defaults to "deepl".
	Name string

	// Endpoint is the API base URL, e.g. https://api-free.deepl.com/v2.
	// Required.
	Endpoint provider.Endpoint

	// AuthKey is sent as "DeepL-Auth-Key <key>". Required.
	AuthKey string

	// Formality selects the formality register where the target language
	// supports one ("more", "less", "default"). Optional.
	Formality string

	// Timeout bounds each attempt. Default 60s.
	Timeout time.Duration

	// MaxRetries is the retry count after the first failed attempt.
	// Negative selects the default (3).
	MaxRetries int

	// RetryBaseDelay is the first backoff delay. Default 1s.
	RetryBaseDelay time.Duration
}

type translateRequest struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang,omitempty"`
	TargetLang string   `json:"target_lang"`
	Formality  string   `json:"formality,omitempty"`
}

type translateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// New creates a DeepL adapter from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.Endpoint.BaseURL == "" {
		return nil, errors.New("deepl: endpoint base URL is required")
	}
	if cfg.AuthKey == "" {
		return nil, errors.New("deepl: auth key is required")
	}
	if cfg.Name == "" {
		cfg.Name = "deepl"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := cfg.Endpoint.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	p := &Provider{
		name:   cfg.Name,
		cfg:    cfg,
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
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
	return provider.Capabilities{}
}

// Translate calls POST /translate with the content as a single text entry.
func (p *Provider) Translate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	if req == nil || req.Content == "" {
		return nil, provider.NewError(provider.KindFatal, p.name, "request content is empty")
	}
	if req.TargetLanguage == "" {
		return nil, provider.NewError(provider.KindFatal, p.name, "target language is required")
	}

	start := time.Now()
	res, err := retry.Do(ctx, p.retrier, func(ctx context.Context) (*provider.Result, error) {
		return p.translateOnce(ctx, req)
	})
	observability.ObserveTranslation(p.name, "translate", observability.StatusOf(err), start)
	return res, err
}

func (p *Provider) translateOnce(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	payload := &translateRequest{
		Text:       []string{req.Content},
		SourceLang: languageCode(req.SourceLanguage),
		TargetLang: languageCode(req.TargetLanguage),
		Formality:  p.cfg.Formality,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, provider.WrapError(provider.KindFatal, p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint.BaseURL+"/translate", bytes.NewReader(data))
	if err != nil {
		return nil, provider.WrapError(provider.KindFatal, p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.cfg.AuthKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.MapNetworkError(p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// DeepL signals an exhausted character quota with 456.
		if resp.StatusCode == 456 {
			return nil, provider.NewError(provider.KindFatal, p.name, "translation quota exhausted")
		}
		return nil, provider.MapHTTPError(p.name, resp)
	}

	var tr translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, provider.WrapError(provider.KindMalformedResponse, p.name, err)
	}
	if len(tr.Translations) == 0 {
		return nil, provider.NewError(provider.KindMalformedResponse, p.name, "response carried no translations")
	}

	text := sanitize.Clean(tr.Translations[0].Text)
	if text == "" {
		return nil, provider.NewError(provider.KindMalformedResponse, p.name, "translation is empty")
	}
	return &provider.Result{Text: text}, nil
}

// StreamTranslate emulates streaming: the full result arrives as one
// partial event followed by done.
func (p *Provider) StreamTranslate(ctx context.Context, req *provider.Request) (<-chan provider.StreamEvent, error) {
	return provider.EmulateStream(ctx, p, req)
}

// CountTokens is unsupported: DeepL bills characters, not tokens.
func (p *Provider) CountTokens(ctx context.Context, req *provider.Request) (int, error) {
	return 0, provider.ErrNoCounter
}

func (p *Provider) EstimateTokens(text string) int {
	return budget.EstimateTokens(text)
}

// ListModels is empty: DeepL exposes no model catalog.
func (p *Provider) ListModels(ctx context.Context) []provider.ModelInfo {
	return nil
}

func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// languageCode maps a language name to the upper-cased code DeepL expects.
// Already-coded values ("fr", "EN-US") pass through upper-cased; full
// names are looked up in a small table of common languages and passed
// through as-is when unknown, letting the backend report the error.
func languageCode(language string) string {
	if language == "" {
		return ""
	}
	if code, ok := languageNames[strings.ToLower(language)]; ok {
		return code
	}
	if len(language) <= 5 && !strings.ContainsRune(language, ' ') {
		return strings.ToUpper(language)
	}
	return language
}

var languageNames = map[string]string{
	"english":    "EN",
	"french":     "FR",
	"german":     "DE",
	"spanish":    "ES",
	"italian":    "IT",
	"portuguese": "PT",
	"dutch":      "NL",
	"polish":     "PL",
	"russian":    "RU",
	"japanese":   "JA",
	"korean":     "KO",
	"chinese":    "ZH",
	"arabic":     "AR",
	"turkish":    "TR",
	"ukrainian":  "UK",
}
