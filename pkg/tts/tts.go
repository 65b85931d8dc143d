// Package tts turns text into speech for the user's earpiece.
//
// Providers synthesize audio (espeak-ng and Piper locally, OpenAI over
// HTTP). A Chain tries providers in order, and a Speaker picks the chain
// for the current language, plays the result, and falls back to printing
// the text when nothing can speak.
//
//	espeak := tts.NewEspeak(tts.WithLanguage("en"))
//	speaker := tts.NewSpeaker(tts.SpeakerConfig{Language: "en"}, logger)
//	speaker.Speak(ctx, "Obstacle ahead.")
package tts

import (
	"context"
	"time"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to a complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the provider can synthesize at all.
	Health(ctx context.Context) error

	// Name identifies the provider in logs and errors.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete synthesis result.
type AudioResult struct {
	Audio    []byte
	Format   AudioFormat
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the wall time the provider took.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding represents audio container or codec types.
type Encoding string

const (
	EncodingWAV   Encoding = "wav"
	EncodingMP3   Encoding = "mp3"
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
)

// FileExt returns the file extension players expect for e.
func (e Encoding) FileExt() string {
	switch e {
	case EncodingMP3:
		return ".mp3"
	case EncodingWAV:
		return ".wav"
	default:
		return ".raw"
	}
}
