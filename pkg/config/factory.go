package config

import (
	"fmt"

	"github.com/sublate/sublate/pkg/provider"
	"github.com/sublate/sublate/pkg/provider/deepl"
	"github.com/sublate/sublate/pkg/provider/fallback"
	"github.com/sublate/sublate/pkg/provider/gemini"
	"github.com/sublate/sublate/pkg/provider/openaichat"
)

// BuildProvider constructs the provider chain the config describes: the
// primary adapter, wrapped with the fallback decorator when a secondary is
// configured.
func BuildProvider(cfg *Config) (provider.Provider, error) {
	primary, err := buildAdapter(cfg, cfg.Translator.Primary)
	if err != nil {
		return nil, err
	}
	if cfg.Translator.Secondary == "" {
		return primary, nil
	}

	secondary, err := buildAdapter(cfg, cfg.Translator.Secondary)
	if err != nil {
		primary.Close()
		return nil, err
	}
	return fallback.New(primary, secondary), nil
}

func buildAdapter(cfg *Config, name string) (provider.Provider, error) {
	switch name {
	case "openai":
		return openaichat.New(openaichat.Config{
			Endpoint: provider.Endpoint{BaseURL: cfg.Providers.OpenAI.BaseURL},
			APIKey:   cfg.Providers.OpenAI.APIKey,
			Model:    cfg.Providers.OpenAI.Model,
			Params: provider.GenerationParams{
				Temperature: cfg.Providers.OpenAI.Temperature,
				TopP:        cfg.Providers.OpenAI.TopP,
			},
			MaxOutputTokens:  cfg.Providers.OpenAI.MaxOutputTokens,
			OutputTokenLimit: cfg.Providers.OpenAI.OutputTokenLimit,
			PromptTemplate:   cfg.Translator.PromptTemplate,
			Timeout:          cfg.Translator.Timeout,
			MaxRetries:       cfg.Translator.MaxRetries,
			RetryBaseDelay:   cfg.Translator.RetryBaseDelay,
		})

	case "gemini":
		return gemini.New(gemini.Config{
			Endpoint: provider.Endpoint{BaseURL: cfg.Providers.Gemini.BaseURL},
			APIKey:   cfg.Providers.Gemini.APIKey,
			Model:    cfg.Providers.Gemini.Model,
			Params: provider.GenerationParams{
				Temperature: cfg.Providers.Gemini.Temperature,
				TopP:        cfg.Providers.Gemini.TopP,
				TopK:        cfg.Providers.Gemini.TopK,
			},
			MaxOutputTokens: cfg.Providers.Gemini.MaxOutputTokens,
			ThinkingBudget:  cfg.Providers.Gemini.ThinkingBudget,
			PromptTemplate:  cfg.Translator.PromptTemplate,
			Timeout:         cfg.Translator.Timeout,
			MaxRetries:      cfg.Translator.MaxRetries,
			RetryBaseDelay:  cfg.Translator.RetryBaseDelay,
		})

	case "deepl":
		return deepl.New(deepl.Config{
			Endpoint:       provider.Endpoint{BaseURL: cfg.Providers.DeepL.BaseURL},
			AuthKey:        cfg.Providers.DeepL.AuthKey,
			Formality:      cfg.Providers.DeepL.Formality,
			Timeout:        cfg.Translator.Timeout,
			MaxRetries:     cfg.Translator.MaxRetries,
			RetryBaseDelay: cfg.Translator.RetryBaseDelay,
		})

	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
