package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Chunk is one buffer of interleaved PCM16 samples.
type Chunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Source yields chunks from one recording. A Source is used for a single
// clip and then closed.
type Source interface {
	Start(ctx context.Context) error

	// Read blocks for the next chunk and returns io.EOF once the
	// recording has ended.
	Read(ctx context.Context) (Chunk, error)

	// Name identifies the backend in logs.
	Name() string

	io.Closer
}

// NewSource opens a source for cfg.Backend. BackendAuto records through
// the capture tool when it is installed and falls back to silence.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendAuto, "":
		if CommandAvailable() {
			return NewCommandSource(cfg, logger), nil
		}
		logger.Debug("no capture tool installed, recording silence", "tool", captureTool())
		return NewToneSource(cfg, 0, 0), nil
	case BackendCommand:
		return NewCommandSource(cfg, logger), nil
	case BackendTone:
		return NewToneSource(cfg, 0, 0), nil
	}
	return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
}
