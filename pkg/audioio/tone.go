package audioio

import (
	"context"
	"io"
	"math"
	"sync"
	"time"
)

// ToneSource synthesizes a sine tone, or silence at zero amplitude, paced
// like a real microphone: each Read waits one buffer duration.
type ToneSource struct {
	cfg       Config
	frequency float64
	amplitude float64

	mu      sync.Mutex
	started bool
	closed  bool
	phase   int
}

// NewToneSource returns a source producing frequency Hz at amplitude
// (0 to 1).
func NewToneSource(cfg Config, frequency, amplitude float64) *ToneSource {
	return &ToneSource{cfg: cfg, frequency: frequency, amplitude: amplitude}
}

// Start arms the source.
func (s *ToneSource) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.started = true
	return nil
}

// Read waits one buffer duration and returns the next chunk.
func (s *ToneSource) Read(ctx context.Context) (Chunk, error) {
	s.mu.Lock()
	live := s.started && !s.closed
	s.mu.Unlock()
	if !live {
		return Chunk{}, io.EOF
	}

	t := time.NewTimer(s.cfg.BufferDuration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case <-t.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	frames := s.cfg.BufferSize()
	samples := make([]int16, frames*s.cfg.Channels)
	if s.amplitude > 0 && s.frequency > 0 {
		step := 2 * math.Pi * s.frequency / float64(s.cfg.SampleRate)
		for i := 0; i < frames; i++ {
			v := int16(s.amplitude * 32767 * math.Sin(step*float64(s.phase)))
			for ch := 0; ch < s.cfg.Channels; ch++ {
				samples[i*s.cfg.Channels+ch] = v
			}
			s.phase = (s.phase + 1) % s.cfg.SampleRate
		}
	}
	return Chunk{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}, nil
}

// Name returns "tone".
func (s *ToneSource) Name() string { return "tone" }

// Close ends the recording; later reads return io.EOF.
func (s *ToneSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ Source = (*ToneSource)(nil)
