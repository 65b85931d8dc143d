package sensors

import (
	"context"
	"log/slog"
	"time"
)

// speedOfSound in cm/s at room temperature.
const speedOfSound = 34300.0

// DefaultCliffThreshold is the distance below which CheckCliff reports danger.
const DefaultCliffThreshold = 30.0

// EchoTimer triggers an HC-SR04 ping and reports how long the echo pin
// stayed high.
type EchoTimer interface {
	Echo(ctx context.Context) (time.Duration, error)
}

// Ultrasonic reads distance ahead of the stick in centimetres.
type Ultrasonic struct {
	timer  EchoTimer
	rand   *random
	logger *slog.Logger
}

// NewUltrasonic uses timer for readings. A nil timer simulates.
func NewUltrasonic(timer EchoTimer, logger *slog.Logger) *Ultrasonic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ultrasonic{
		timer:  timer,
		rand:   newRandom(0),
		logger: logger.With("component", "sensors.ultrasonic"),
	}
}

// NewSimulatedUltrasonic returns a deterministic simulator for a seed.
func NewSimulatedUltrasonic(seed uint64) *Ultrasonic {
	return &Ultrasonic{rand: newRandom(seed), logger: slog.Default()}
}

// ReadDistance returns the distance and whether a reading was obtained.
func (u *Ultrasonic) ReadDistance(ctx context.Context) (float64, bool) {
	if u.timer == nil {
		return u.simulate(), true
	}
	d, err := u.timer.Echo(ctx)
	if err != nil {
		u.logger.Debug("echo failed", "error", err)
		return 0, false
	}
	return EchoDistance(d), true
}

// simulate mostly reports open space, with an occasional close obstacle.
func (u *Ultrasonic) simulate() float64 {
	d := u.rand.uniform(50, 150)
	if u.rand.chance(0.2) {
		d = u.rand.uniform(20, 60)
	}
	return round1(d)
}

// EchoDistance converts an echo pulse width to centimetres.
func EchoDistance(pulse time.Duration) float64 {
	return round1(pulse.Seconds() * speedOfSound / 2)
}

// CheckCliff reports danger when a reading exists and is below threshold.
func CheckCliff(distance float64, ok bool, threshold float64) bool {
	return ok && distance < threshold
}
