// Package audioio captures microphone audio as PCM16.
//
// Backends:
//   - Command: arecord on Linux, sox "rec" on macOS, read from stdout
//   - Tone: a synthetic sine tone or silence, for tests and machines
//     without a microphone
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto picks the command backend when its tool is installed,
	// otherwise silence.
	BackendAuto    Backend = "auto"
	BackendCommand Backend = "command"
	BackendTone    Backend = "tone"
)

// Config holds audio configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate in Hz. Speech recognition wants 16000.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is how much audio each chunk holds.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is passed to the capture tool, e.g. "plughw:1,0" for arecord.
	// Empty means the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns 16kHz mono in 50ms chunks.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 50 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of frames per chunk.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a chunk in bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}

// SamplesFor returns how many samples cover d.
func (c *Config) SamplesFor(d time.Duration) int {
	return int(float64(c.SampleRate)*d.Seconds()) * c.Channels
}
