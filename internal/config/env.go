package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvEndpointURL     = "LLM_ENDPOINT_URL"
	EnvAPIKey          = "LLM_API_KEY"
	EnvEmbeddingAPIKey = "KOTAE_EMBEDDING_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// Placeholder values written by WriteEnvTemplate.
const (
	PlaceholderEndpoint = "your_endpoint_url_here"
	PlaceholderAPIKey   = "your_api_key_here"
)

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are skipped; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment values on cfg. lookup is usually os.LookupEnv.
// Placeholder values are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookupReal(lookup, EnvEndpointURL); ok {
		cfg.LLM.EndpointURL = v
	}
	if v, ok := lookupReal(lookup, EnvAPIKey); ok {
		cfg.LLM.APIKey = v
	}
	if cfg.Embedding.OpenAI.APIKey == "" {
		if v, ok := lookupReal(lookup, EnvEmbeddingAPIKey); ok {
			cfg.Embedding.OpenAI.APIKey = v
		} else if v, ok := lookupReal(lookup, EnvOpenAIAPIKey); ok {
			cfg.Embedding.OpenAI.APIKey = v
		}
	}
}

func lookupReal(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" || isPlaceholder(v) {
		return "", false
	}
	return v, true
}

func isPlaceholder(v string) bool {
	return v == PlaceholderEndpoint || v == PlaceholderAPIKey
}

// WriteEnvTemplate creates a .env file at path with placeholder credentials.
// An existing file is left untouched and reported with created=false.
func WriteEnvTemplate(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	env := map[string]string{
		EnvEndpointURL: PlaceholderEndpoint,
		EnvAPIKey:      PlaceholderAPIKey,
	}
	if err := godotenv.Write(env, path); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// EnvConfigured reports whether the .env file at path exists and sets both
// credentials to non-placeholder values.
func EnvConfigured(path string) (bool, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	for _, key := range []string{EnvEndpointURL, EnvAPIKey} {
		v := strings.TrimSpace(env[key])
		if v == "" || isPlaceholder(v) {
			return false, nil
		}
	}
	return true, nil
}
