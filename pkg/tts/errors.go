package tts

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("tts: API key required")
	ErrNoVoice             = errors.New("tts: voice model required")
	ErrEmptyText           = errors.New("tts: empty text")
	ErrProviderUnavailable = errors.New("tts: no providers available")
	ErrNoPlayer            = errors.New("tts: no audio player available")
)

// APIError is a non-200 answer from a hosted speech API.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tts [%s]: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tts [%s]: HTTP %d %s: %s", e.Provider, e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether retrying the same request may succeed: rate
// limiting or a server-side failure.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ProviderError tags err with the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err) }

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError returns err tagged with provider, or nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
