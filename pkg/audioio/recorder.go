package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Recorder captures fixed-length clips. Each clip opens its own source so
// the wake listener and the engine never share one stream.
type Recorder struct {
	cfg       Config
	logger    *slog.Logger
	newSource func(Config, *slog.Logger) (Source, error)
}

// NewRecorder creates a recorder for cfg.
func NewRecorder(cfg Config, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{cfg: cfg, logger: logger, newSource: NewSource}
}

// Config returns the recording format.
func (r *Recorder) Config() Config {
	return r.cfg
}

// Record returns about d of audio. It gives up one second after d if the
// device stalls, returning what it has.
func (r *Recorder) Record(ctx context.Context, d time.Duration) ([]int16, error) {
	src, err := r.newSource(r.cfg, r.logger)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(ctx, d+time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		return nil, fmt.Errorf("start %s: %w", src.Name(), err)
	}

	want := r.cfg.SamplesFor(d)
	samples := make([]int16, 0, want)
	for len(samples) < want {
		chunk, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return samples, err
		}
		samples = append(samples, chunk.Samples...)
	}
	if len(samples) > want {
		samples = samples[:want]
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s produced no audio", src.Name())
	}
	return samples, nil
}

// ActivityThreshold is the RMS above which sound counts as present.
const ActivityThreshold = 0.02

// Activity is the result of one sound check.
type Activity struct {
	Active bool    `json:"active"`
	RMS    float64 `json:"rms"`
}

// ActivityDetector reports whether the microphone hears anything. A single
// microphone cannot localise, only detect energy.
type ActivityDetector struct {
	rec      *Recorder
	window   time.Duration
	simulate bool
	logger   *slog.Logger
}

// NewActivityDetector samples window of audio per check. Simulation, or a
// nil recorder, always reports silence.
func NewActivityDetector(rec *Recorder, window time.Duration, simulate bool, logger *slog.Logger) *ActivityDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityDetector{
		rec:      rec,
		window:   window,
		simulate: simulate,
		logger:   logger.With("component", "audioio.activity"),
	}
}

// DetectActivity records one window and measures it.
func (d *ActivityDetector) DetectActivity(ctx context.Context) Activity {
	if d.simulate || d.rec == nil {
		return Activity{}
	}
	samples, err := d.rec.Record(ctx, d.window)
	if err != nil {
		d.logger.Debug("record failed", "error", err)
		return Activity{}
	}
	rms := CalculateRMS(samples)
	return Activity{Active: rms > ActivityThreshold, RMS: rms}
}
