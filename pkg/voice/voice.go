// Package voice turns short microphone clips into text and watches for the
// wake word.
package voice

import (
	"context"
	"time"
)

// SimulatedUtterance is what the simulated recognizer always hears.
const SimulatedUtterance = "Simulation: navigate to library"

// Error strings returned in place of a transcript. Callers ignore text
// starting with "error".
const (
	ErrTextAudioUnavailable   = "Error: Audio input unavailable"
	ErrTextServiceUnavailable = "Error: Speech service unavailable"
)

// Recognizer listens for at most timeout and returns what it heard.
// Empty means silence.
type Recognizer interface {
	ListenOnce(ctx context.Context, timeout time.Duration) string
}

// Simulated returns a fixed utterance without touching the microphone.
type Simulated struct {
	Text string
}

// ListenOnce returns s.Text, or SimulatedUtterance when it is empty.
func (s Simulated) ListenOnce(context.Context, time.Duration) string {
	if s.Text == "" {
		return SimulatedUtterance
	}
	return s.Text
}

var _ Recognizer = Simulated{}
