// Package llmfactory creates chat-model clients for OpenAI-compatible
// providers from file or environment configuration.
package llmfactory

import (
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Load reads the optional config file, applies environment overlays and
// validates the result.
func Load(location string) (*Config, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	cfg.WithEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewClient returns a client for the configured provider.
func NewClient(cfg *ProviderConfig) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Token),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}
