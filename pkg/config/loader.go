package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SUBLATE_CONFIG env, ./sublate.yaml, /etc/sublate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. SUBLATE_CONFIG environment variable
// 3. ./sublate.yaml in the current directory
// 4. /etc/sublate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("SUBLATE_CONFIG"); envPath != "" {
		return envPath
	}
	candidates := []string{
		"sublate.yaml",
		"/etc/sublate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps SUBLATE_* environment variables onto config
// fields. Env values win over YAML values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUBLATE_PRIMARY"); v != "" {
		cfg.Translator.Primary = v
	}
	if v := os.Getenv("SUBLATE_SECONDARY"); v != "" {
		cfg.Translator.Secondary = v
	}
	if v := os.Getenv("SUBLATE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Translator.MaxRetries = n
		}
	}
	if v := os.Getenv("SUBLATE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Translator.Timeout = d
		}
	}

	if v := os.Getenv("SUBLATE_OPENAI_BASE_URL"); v != "" {
		cfg.Providers.OpenAI.BaseURL = v
	}
	if v := os.Getenv("SUBLATE_OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("SUBLATE_OPENAI_MODEL"); v != "" {
		cfg.Providers.OpenAI.Model = v
	}

	if v := os.Getenv("SUBLATE_GEMINI_BASE_URL"); v != "" {
		cfg.Providers.Gemini.BaseURL = v
	}
	if v := os.Getenv("SUBLATE_GEMINI_API_KEY"); v != "" {
		cfg.Providers.Gemini.APIKey = v
	}
	if v := os.Getenv("SUBLATE_GEMINI_MODEL"); v != "" {
		cfg.Providers.Gemini.Model = v
	}

	if v := os.Getenv("SUBLATE_DEEPL_BASE_URL"); v != "" {
		cfg.Providers.DeepL.BaseURL = v
	}
	if v := os.Getenv("SUBLATE_DEEPL_AUTH_KEY"); v != "" {
		cfg.Providers.DeepL.AuthKey = v
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if cfg.Providers.OpenAI.APIKeyFile != "" && cfg.Providers.OpenAI.APIKey == "" {
		val, err := readSecretFile(cfg.Providers.OpenAI.APIKeyFile)
		if err != nil {
			return fmt.Errorf("providers.openai.api_key_file: %w", err)
		}
		cfg.Providers.OpenAI.APIKey = val
	}

	if cfg.Providers.Gemini.APIKeyFile != "" && cfg.Providers.Gemini.APIKey == "" {
		val, err := readSecretFile(cfg.Providers.Gemini.APIKeyFile)
		if err != nil {
			return fmt.Errorf("providers.gemini.api_key_file: %w", err)
		}
		cfg.Providers.Gemini.APIKey = val
	}

	if cfg.Providers.DeepL.AuthKeyFile != "" && cfg.Providers.DeepL.AuthKey == "" {
		val, err := readSecretFile(cfg.Providers.DeepL.AuthKeyFile)
		if err != nil {
			return fmt.Errorf("providers.deepl.auth_key_file: %w", err)
		}
		cfg.Providers.DeepL.AuthKey = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
