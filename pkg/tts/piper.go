package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const providerPiper = "piper"

// Piper synthesizes with the piper neural TTS binary. Voice is the path
// to an .onnx voice model.
type Piper struct {
	config *Config
	logger *slog.Logger
	run    runFunc
}

// NewPiper creates a Piper provider. A voice model is required.
func NewPiper(opts ...Option) (*Piper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}
	return &Piper{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.piper"),
		run:    runCommand,
	}, nil
}

// Synthesize feeds text on stdin and reads back the WAV piper writes.
func (p *Piper) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerPiper, ErrEmptyText)
	}

	dir, err := os.MkdirTemp("", "lumen-piper-")
	if err != nil {
		return nil, WrapError(providerPiper, err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "out.wav")

	start := time.Now()
	args := []string{"--model", p.config.Voice, "--output_file", out}
	if _, err := p.run(ctx, p.binary(), args, []byte(text)); err != nil {
		return nil, WrapError(providerPiper, err)
	}

	audio, err := os.ReadFile(out)
	if err != nil {
		return nil, WrapError(providerPiper, fmt.Errorf("read output: %w", err))
	}

	p.logger.Debug("synthesized audio", "chars", len(text), "bytes", len(audio), "voice", p.config.Voice)
	return &AudioResult{
		Audio:     audio,
		Format:    AudioFormat{Encoding: EncodingWAV, SampleRate: 22050, Channels: 1, BitDepth: 16},
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health checks the binary and voice model are present.
func (p *Piper) Health(ctx context.Context) error {
	if _, ok := lookPath(p.binary()); !ok {
		return WrapError(providerPiper, ErrProviderUnavailable)
	}
	if _, err := os.Stat(p.config.Voice); err != nil {
		return WrapError(providerPiper, err)
	}
	return nil
}

// Name returns "piper".
func (p *Piper) Name() string { return providerPiper }

// Close is a no-op.
func (p *Piper) Close() error { return nil }

func (p *Piper) binary() string {
	if p.config.Binary != "" {
		return p.config.Binary
	}
	return "piper"
}

var _ Provider = (*Piper)(nil)
