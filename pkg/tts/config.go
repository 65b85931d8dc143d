package tts

import (
	"log/slog"
	"time"
)

// Config holds provider configuration. Use the WithXxx options to set it.
type Config struct {
	APIKey  string
	BaseURL string

	// Language is a BCP-47-ish code ("en", "bn") passed to engines that
	// pick voices by language.
	Language string

	// Voice is an engine-specific voice name or model path.
	Voice string
	Model string

	// Binary overrides the executable used by local engines.
	Binary string

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key for hosted providers.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithLanguage sets the synthesis language.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithVoice sets the voice name or model path.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithBinary overrides the executable a local engine runs.
func WithBinary(path string) Option {
	return func(c *Config) { c.Binary = path }
}

// WithTimeout bounds a single synthesis.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the defaults shared by all providers.
func DefaultConfig() *Config {
	return &Config{
		Language:   "en",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks that an API key is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// ValidateWithVoice checks that a voice is present.
func (c *Config) ValidateWithVoice() error {
	if c.Voice == "" {
		return ErrNoVoice
	}
	return nil
}
