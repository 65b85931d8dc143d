package sensors

import (
	"context"
	"log/slog"
)

// GestureBackend reads one gesture from the APDS9960.
type GestureBackend interface {
	ReadGesture(ctx context.Context) (Gesture, error)
}

// GestureReader returns the latest gesture.
type GestureReader struct {
	backend GestureBackend
	rand    *random
	logger  *slog.Logger
}

// NewGestureReader reads from backend. A nil backend picks gestures at
// random.
func NewGestureReader(backend GestureBackend, logger *slog.Logger) *GestureReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &GestureReader{
		backend: backend,
		rand:    newRandom(0),
		logger:  logger.With("component", "sensors.gesture"),
	}
}

// ReadGesture returns GestureNone when the backend fails.
func (g *GestureReader) ReadGesture(ctx context.Context) Gesture {
	if g.backend == nil {
		return Gestures[g.rand.intn(len(Gestures))]
	}
	gesture, err := g.backend.ReadGesture(ctx)
	if err != nil {
		g.logger.Debug("read failed", "error", err)
		return GestureNone
	}
	return gesture
}
