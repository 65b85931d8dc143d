// Package haptics drives the stick's vibration motor.
package haptics

import (
	"context"
	"log/slog"
	"time"
)

// PWM is a pulse-width-modulated output pin.
type PWM interface {
	// SetDuty sets the duty cycle in [0, 1]. Zero stops the motor.
	SetDuty(duty float64) error
}

// Motor buzzes at an intensity for a duration.
type Motor struct {
	pin    PWM
	logger *slog.Logger
}

// New drives pin. A nil pin simulates by logging and waiting out the
// buzz, so callers see the same timing either way.
func New(pin PWM, logger *slog.Logger) *Motor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Motor{pin: pin, logger: logger.With("component", "haptics")}
}

// Buzz vibrates for d. Intensity is clamped to [0, 1]; failures are logged.
func (m *Motor) Buzz(ctx context.Context, intensity float64, d time.Duration) {
	intensity = max(0, min(1, intensity))

	if m.pin == nil {
		m.logger.Info("[SIM-HAPTIC] buzz", "intensity", intensity, "duration_ms", d.Milliseconds())
		wait(ctx, d)
		return
	}

	if err := m.pin.SetDuty(intensity); err != nil {
		m.logger.Debug("set duty failed", "error", err)
		return
	}
	wait(ctx, d)
	if err := m.pin.SetDuty(0); err != nil {
		m.logger.Debug("stop failed", "error", err)
	}
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
