// Package config provides unified configuration for the sublate
// translation core.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (SUBLATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the translation core.
type Config struct {
	Translator    TranslatorConfig    `yaml:"translator"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
}

// TranslatorConfig selects the provider chain and the shared call policy.
type TranslatorConfig struct {
	// Primary is the provider serving translations: "openai", "gemini",
	// or "deepl". Required.
	Primary string `yaml:"primary"`

	// Secondary optionally names a fallback provider tried when the
	// primary fails.
	Secondary string `yaml:"secondary"`

	// PromptTemplate overrides the built-in instruction template for
	// prompting backends. Supports {target_language} and
	// {source_language}.
	PromptTemplate string `yaml:"prompt_template"`

	// Timeout bounds each single-shot backend attempt. default: 120s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the per-provider retry count after the first failed
	// attempt. default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryBaseDelay is the first backoff delay. default: 1s
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// ProvidersConfig holds the per-backend settings. Only the sections named
// by translator.primary/secondary need to be filled in.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	DeepL  DeepLConfig  `yaml:"deepl"`
}

// OpenAIConfig configures the Chat Completions adapter. Any
// OpenAI-compatible server works; base_url points at the API root
// including the version prefix.
type OpenAIConfig struct {
	BaseURL    string `yaml:"base_url"` // e.g. https://api.openai.com/v1
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
	Model      string `yaml:"model"`

	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`

	// MaxOutputTokens caps requested output. default: 0 (model limit)
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// OutputTokenLimit is the model family's output ceiling; the protocol
	// exposes no metadata endpoint to discover it. default: 8192
	OutputTokenLimit int `yaml:"output_token_limit"`
}

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	BaseURL    string `yaml:"base_url"` // default: the public API endpoint
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
	Model      string `yaml:"model"`        // default: "gemini-2.0-flash"

	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	TopK        *int     `yaml:"top_k"`

	// MaxOutputTokens caps requested output. default: 0 (model limit)
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// ThinkingBudget reserves reasoning tokens: -1 dynamic, 0 off,
	// positive fixed. default: 0
	ThinkingBudget int `yaml:"thinking_budget"`
}

// DeepLConfig configures the DeepL adapter.
type DeepLConfig struct {
	BaseURL     string `yaml:"base_url"` // default: the free-tier endpoint
	AuthKey     string `yaml:"auth_key"`
	AuthKeyFile string `yaml:"auth_key_file"` // _file variant for auth_key
	Formality   string `yaml:"formality"`     // "more", "less", or ""
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig holds category debug logging settings. The SUBLATE_DEBUG
// and SUBLATE_LOG_LEVEL environment variables take priority over these.
type DebugConfig struct {
	Categories string `yaml:"categories"` // e.g. "providers,streaming" or "all"
	Level      string `yaml:"level"`      // "debug", "info", "warn", "error"
}

// Default endpoints for the hosted backends.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultDeepLBaseURL  = "https://api-free.deepl.com/v2"
)

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Translator: TranslatorConfig{
			Primary:        "gemini",
			Timeout:        120 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
		},
		Providers: ProvidersConfig{
			Gemini: GeminiConfig{
				BaseURL: DefaultGeminiBaseURL,
				Model:   "gemini-2.0-flash",
			},
			DeepL: DeepLConfig{
				BaseURL: DefaultDeepLBaseURL,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
