package tts

import (
	"context"
	"sync"
	"time"
)

// Mock is an in-memory Provider. It returns silent 16 kHz PCM, about 20ms
// per character, or Err when set. It records what it was asked to say.
type Mock struct {
	Err error
	ID  string

	mu     sync.Mutex
	spoken []string
	closed int
}

// NewMock returns a working mock.
func NewMock() *Mock {
	return &Mock{}
}

// WithError returns a mock whose Synthesize and Health fail with err.
func WithError(err error) *Mock {
	return &Mock{Err: err}
}

func (m *Mock) Synthesize(_ context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, WrapError(m.Name(), m.Err)
	}
	const bytesPerChar = 640
	return &AudioResult{
		Audio:     make([]byte, len(text)*bytesPerChar),
		Format:    AudioFormat{Encoding: EncodingPCM16, SampleRate: 16000, Channels: 1, BitDepth: 16},
		Duration:  time.Duration(len(text)) * 20 * time.Millisecond,
		CharCount: len(text),
	}, nil
}

func (m *Mock) Health(context.Context) error { return m.Err }

// Name returns ID, or "mock".
func (m *Mock) Name() string {
	if m.ID != "" {
		return m.ID
	}
	return "mock"
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return nil
}

// Spoken returns every text passed to Synthesize, in order.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.spoken...)
}

// Closed returns how many times Close was called.
func (m *Mock) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Provider = (*Mock)(nil)
