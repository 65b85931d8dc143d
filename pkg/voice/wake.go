package voice

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// WakeWords trigger the listener's callback. English and Bengali.
var WakeWords = []string{"lumen", "লুমেন"}

// ContainsWakeWord reports whether text mentions a wake word.
func ContainsWakeWord(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	for _, w := range WakeWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

// WakeListener polls a recognizer in the background and calls back when
// the wake word is heard.
type WakeListener struct {
	rec    Recognizer
	logger *slog.Logger

	// cooldown follows a trigger; pause separates polls.
	cooldown time.Duration
	pause    time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWakeListener creates a stopped listener.
func NewWakeListener(rec Recognizer, logger *slog.Logger) *WakeListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &WakeListener{
		rec:      rec,
		logger:   logger.With("component", "voice.wake"),
		cooldown: 1500 * time.Millisecond,
		pause:    50 * time.Millisecond,
	}
}

// Start begins polling with clips of length interval. It returns false,
// doing nothing, if the listener is already running.
func (w *WakeListener) Start(ctx context.Context, callback func() error, interval time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		select {
		case <-w.done:
		default:
			return false
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, callback, interval, w.done)

	w.logger.Info("wake listener started", "interval", interval)
	return true
}

func (w *WakeListener) loop(ctx context.Context, callback func() error, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		heard := w.rec.ListenOnce(ctx, interval)
		if ctx.Err() != nil {
			return
		}
		if ContainsWakeWord(heard) {
			w.logger.Info("wake word heard", "text", heard)
			if err := callback(); err != nil {
				w.logger.Warn("wake callback failed", "error", err)
			}
			sleep(ctx, w.cooldown)
		}
		sleep(ctx, w.pause)
	}
}

// Stop ends polling and waits for the in-flight clip to finish.
func (w *WakeListener) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the listener goroutine is alive.
func (w *WakeListener) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
