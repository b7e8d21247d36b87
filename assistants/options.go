package assistants

import (
	"github.com/effective-security/mcpbridge/tools"
)

const (
	// DefaultMaxToolCalls bounds the number of tool executions in one run.
	DefaultMaxToolCalls = 16
	// DefaultMaxMessages bounds the conversation length in one run.
	DefaultMaxMessages = 64
)

// Option is a function that can be used to modify the behavior of the
// assistant Config.
type Option func(*Config)

type Config struct {
	// Model is the model to use in an LLM call.
	Model string

	// SystemPrompt, when set, is prepended to every run.
	SystemPrompt string

	// MaxToolCalls limits tool executions per run.
	MaxToolCalls int

	// MaxMessages limits the message history per run.
	MaxMessages int

	// Callback receives tool lifecycle notifications.
	Callback tools.Callback
}

// NewConfig returns a Config with defaults and the given options applied.
func NewConfig(options ...Option) *Config {
	cfg := &Config{
		MaxToolCalls: DefaultMaxToolCalls,
		MaxMessages:  DefaultMaxMessages,
	}
	for _, op := range options {
		op(cfg)
	}
	return cfg
}

// WithModel sets the model used for completions.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

// WithMaxToolCalls overrides the tool execution limit.
func WithMaxToolCalls(limit int) Option {
	return func(c *Config) {
		c.MaxToolCalls = limit
	}
}

// WithMaxMessages overrides the message history limit.
func WithMaxMessages(limit int) Option {
	return func(c *Config) {
		c.MaxMessages = limit
	}
}

// WithCallback sets the tool callback handler.
func WithCallback(cb tools.Callback) Option {
	return func(c *Config) {
		c.Callback = cb
	}
}
