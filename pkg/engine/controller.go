package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("engine: already running")

// Factory builds a fresh engine for each run.
type Factory func() *Engine

// Controller owns at most one running engine.
type Controller struct {
	base    context.Context
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	current *Engine
	done    chan struct{}
}

// NewController creates a controller. Runs are bound to ctx, not to the
// context of whoever calls Start.
func NewController(ctx context.Context, factory Factory, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		base:    ctx,
		factory: factory,
		logger:  logger.With("component", "engine.controller"),
	}
}

// Start launches a run in the background.
func (c *Controller) Start(iterations int, interval time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runningLocked() {
		return ErrAlreadyRunning
	}

	e := c.factory()
	done := make(chan struct{})
	c.current, c.done = e, done

	go func() {
		defer close(done)
		e.Run(c.base, iterations, interval)
	}()
	return nil
}

// Stop asks the running engine to halt. It reports whether one was
// running and does not wait; use Wait for that.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.runningLocked() {
		return false
	}
	c.current.Stop()
	c.logger.Info("stop requested")
	return true
}

// Wait blocks until the current run, if any, has finished.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// IsRunning reports whether a run is in progress.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runningLocked()
}

// Mode returns the running engine's mode, or false if nothing is running.
func (c *Controller) Mode() (Mode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.runningLocked() {
		return "", false
	}
	return c.current.Mode(), true
}

func (c *Controller) runningLocked() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}
