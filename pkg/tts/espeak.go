package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const providerEspeak = "espeak"

// Espeak synthesizes with espeak-ng (or classic espeak) writing WAV to
// stdout.
type Espeak struct {
	config *Config
	binary string
	logger *slog.Logger
	run    runFunc
}

// NewEspeak creates an espeak provider. The binary is resolved lazily so a
// missing install surfaces as a Synthesize error, not a constructor error.
func NewEspeak(opts ...Option) *Espeak {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Espeak{
		config: cfg,
		binary: cfg.Binary,
		logger: cfg.Logger.With("component", "tts.espeak"),
		run:    runCommand,
	}
}

// Synthesize renders text as 22.05 kHz WAV.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerEspeak, ErrEmptyText)
	}
	bin, err := e.resolve()
	if err != nil {
		return nil, err
	}

	voice := e.config.Voice
	if voice == "" {
		voice = e.config.Language
	}
	args := []string{"--stdout"}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, text)

	start := time.Now()
	audio, err := e.run(ctx, bin, args, nil)
	if err != nil {
		return nil, WrapError(providerEspeak, err)
	}
	if len(audio) == 0 {
		return nil, WrapError(providerEspeak, fmt.Errorf("no audio produced"))
	}

	e.logger.Debug("synthesized audio", "chars", len(text), "bytes", len(audio), "voice", voice)
	return &AudioResult{
		Audio:     audio,
		Format:    AudioFormat{Encoding: EncodingWAV, SampleRate: 22050, Channels: 1, BitDepth: 16},
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health reports whether an espeak binary is installed.
func (e *Espeak) Health(ctx context.Context) error {
	_, err := e.resolve()
	return err
}

// Name returns "espeak".
func (e *Espeak) Name() string { return providerEspeak }

// Close is a no-op.
func (e *Espeak) Close() error { return nil }

func (e *Espeak) resolve() (string, error) {
	if e.binary != "" {
		return e.binary, nil
	}
	bin, ok := lookPath("espeak-ng", "espeak")
	if !ok {
		return "", WrapError(providerEspeak, ErrProviderUnavailable)
	}
	e.binary = bin
	return bin, nil
}

var _ Provider = (*Espeak)(nil)
