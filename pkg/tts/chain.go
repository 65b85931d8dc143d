package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Chain is a Provider that falls through its providers in order until one
// speaks. It remembers which one did so logs show when a fallback voice
// is in use.
type Chain struct {
	providers []Provider
	logger    *slog.Logger

	mu   sync.Mutex
	last string
}

// NewChain needs at least one provider.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, logger: logger.With("component", "tts.chain")}, nil
}

// Synthesize returns the first provider's audio that succeeds. When all
// fail the error is a *ChainError holding each failure.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	failed := &ChainError{}
	for _, p := range c.providers {
		res, err := p.Synthesize(ctx, text)
		if err == nil {
			c.spoke(p.Name())
			return res, nil
		}
		failed.Errors = append(failed.Errors, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("provider failed", "provider", p.Name(), "error", err)
	}
	return nil, failed
}

func (c *Chain) spoke(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != c.last && c.last != "" {
		c.logger.Info("speaking with a different provider", "provider", name, "previous", c.last)
	}
	c.last = name
}

// Last names the provider that produced the most recent audio, or "".
func (c *Chain) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Health succeeds if any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Name is "chain(a,b,...)".
func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Close closes every provider.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// Providers returns the providers in fallback order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// ChainError is returned when every provider in a Chain failed.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("tts: all %d providers failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes every provider failure to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

var _ Provider = (*Chain)(nil)
