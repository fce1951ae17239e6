package config

import (
	"errors"
	"fmt"
)

// knownProviders are the values translator.primary/secondary accept.
var knownProviders = map[string]bool{
	"openai": true,
	"gemini": true,
	"deepl":  true,
}

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Translator.Primary == "" {
		errs = append(errs, fmt.Errorf("translator.primary is required"))
	} else if !knownProviders[c.Translator.Primary] {
		errs = append(errs, fmt.Errorf("translator.primary must be \"openai\", \"gemini\", or \"deepl\", got %q", c.Translator.Primary))
	}

	if c.Translator.Secondary != "" {
		if !knownProviders[c.Translator.Secondary] {
			errs = append(errs, fmt.Errorf("translator.secondary must be \"openai\", \"gemini\", or \"deepl\", got %q", c.Translator.Secondary))
		} else if c.Translator.Secondary == c.Translator.Primary {
			errs = append(errs, fmt.Errorf("translator.secondary must differ from translator.primary"))
		}
	}

	for _, name := range []string{c.Translator.Primary, c.Translator.Secondary} {
		switch name {
		case "openai":
			if c.Providers.OpenAI.BaseURL == "" {
				errs = append(errs, fmt.Errorf("providers.openai.base_url is required"))
			}
			if c.Providers.OpenAI.Model == "" {
				errs = append(errs, fmt.Errorf("providers.openai.model is required"))
			}
		case "gemini":
			if c.Providers.Gemini.APIKey == "" && c.Providers.Gemini.APIKeyFile == "" {
				errs = append(errs, fmt.Errorf("providers.gemini.api_key or providers.gemini.api_key_file is required"))
			}
			if c.Providers.Gemini.Model == "" {
				errs = append(errs, fmt.Errorf("providers.gemini.model is required"))
			}
		case "deepl":
			if c.Providers.DeepL.AuthKey == "" && c.Providers.DeepL.AuthKeyFile == "" {
				errs = append(errs, fmt.Errorf("providers.deepl.auth_key or providers.deepl.auth_key_file is required"))
			}
		}
	}

	if c.Providers.Gemini.ThinkingBudget < -1 {
		errs = append(errs, fmt.Errorf("providers.gemini.thinking_budget must be -1, 0, or positive, got %d", c.Providers.Gemini.ThinkingBudget))
	}

	switch c.Providers.DeepL.Formality {
	case "", "default", "more", "less":
		// valid
	default:
		errs = append(errs, fmt.Errorf("providers.deepl.formality must be \"more\", \"less\", or \"default\", got %q", c.Providers.DeepL.Formality))
	}

	if c.Translator.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("translator.max_retries must be >= 0, got %d", c.Translator.MaxRetries))
	}

	return errors.Join(errs...)
}
