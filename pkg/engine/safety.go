package engine

import (
	"context"
	"time"

	"github.com/teslashibe/go-lumen/pkg/persona"
	"github.com/teslashibe/go-lumen/pkg/sensors"
)

// checkObstacle alerts on an edge ahead (reading beyond CliffCM) or an
// obstacle inside ObstacleCM. Both share one cooldown.
func (e *Engine) checkObstacle(ctx context.Context, dist float64, ok bool) {
	if !ok {
		return
	}

	var kind, phrase string
	var intensity float64
	var d time.Duration

	switch {
	case dist > e.cfg.CliffCM:
		kind, phrase, intensity, d = "cliff", "Careful, there's an edge ahead.", 1.0, 700*time.Millisecond
	case dist < e.cfg.VeryCloseCM:
		kind, phrase, intensity, d = "obstacle", "Obstacle very close ahead.", 1.0, 600*time.Millisecond
	case dist < e.cfg.ObstacleCM:
		kind, phrase, intensity, d = "obstacle", "Obstacle ahead.", 0.6, 300*time.Millisecond
	default:
		return
	}

	now := e.now()
	if now.Sub(e.lastObstacleAlert) <= e.cfg.ObstacleCooldown {
		return
	}
	e.say(ctx, phrase)
	e.buzz(ctx, intensity, d)
	e.lastObstacleAlert = now

	payload := map[string]any{"distance_cm": dist}
	e.record(kind, payload)
	e.personaEvent(persona.EventObstacle, payload)
}

// checkEnvironment speaks hazard advisories for any reading out of range.
// There is no cooldown; a persistent hazard repeats every tick.
func (e *Engine) checkEnvironment(ctx context.Context, env sensors.Environment) {
	if v := env.MQ2PPM; v != nil && *v > e.cfg.GasPPM {
		e.say(ctx, "Warning: air quality poor.")
		e.buzz(ctx, 0.8, 500*time.Millisecond)
	}
	if v := env.MQ9PPM; v != nil && *v > e.cfg.COPPM {
		e.say(ctx, "Warning: CO high.")
		e.buzz(ctx, 0.8, 500*time.Millisecond)
	}
	if outside(env.TemperatureC, e.cfg.TempRange) {
		e.say(ctx, "Temperature outside comfort range.")
	}
	if outside(env.HumidityPct, e.cfg.HumidityRange) {
		e.say(ctx, "Humidity outside comfort range.")
	}
	if outside(env.IRTempC, e.cfg.IRTempRange) {
		e.say(ctx, "Object temperature unusual.")
	}
}

func outside(v *float64, r [2]float64) bool {
	return v != nil && (*v < r[0] || *v > r[1])
}
