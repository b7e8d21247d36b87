package llmfactory

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultBaseURL routes requests through OpenRouter.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel is used when neither config nor environment selects one.
	DefaultModel = "anthropic/claude-3.5-sonnet"
)

type Config struct {
	Provider ProviderConfig `json:"provider" yaml:"provider"`
}

// ProviderConfig for an OpenAI-compatible provider
type ProviderConfig struct {
	Name         string `json:"name" yaml:"name"`
	Token        string `json:"token,omitempty" yaml:"token,omitempty" validate:"required"`
	BaseURL      string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	DefaultModel string `json:"default_model,omitempty" yaml:"default_model,omitempty"`
}

// LoadConfig from file. An empty location yields an empty config, to be
// completed from the environment.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// WithEnv overlays environment settings: OPENROUTER_API_KEY for the token and
// MCPBRIDGE_MODEL for the model, with package defaults as the last resort.
func (c *Config) WithEnv() *Config {
	p := &c.Provider
	p.Name = values.StringsCoalesce(p.Name, "openrouter")
	p.Token = values.StringsCoalesce(os.Getenv("OPENROUTER_API_KEY"), p.Token)
	p.BaseURL = values.StringsCoalesce(p.BaseURL, DefaultBaseURL)
	p.DefaultModel = values.StringsCoalesce(os.Getenv("MCPBRIDGE_MODEL"), p.DefaultModel, DefaultModel)
	return c
}

var validate = validator.New()

// Validate checks the configuration is complete enough to create a client.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.WithMessage(err, "invalid provider config")
	}
	return nil
}
