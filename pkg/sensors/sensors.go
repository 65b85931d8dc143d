// Package sensors reads the stick's ultrasonic, environmental and gesture
// sensors. Each reader takes an optional hardware backend; without one it
// falls back to simulated values the way a development machine would.
package sensors

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Gesture is one swipe or proximity gesture from the APDS9960.
type Gesture string

// Recognised gestures. GestureNone means nothing was read.
const (
	GestureNone  Gesture = ""
	GestureUp    Gesture = "up"
	GestureDown  Gesture = "down"
	GestureLeft  Gesture = "left"
	GestureRight Gesture = "right"
	GestureNear  Gesture = "near"
	GestureFar   Gesture = "far"
)

// Gestures lists every gesture the sensor can report.
var Gestures = []Gesture{GestureUp, GestureDown, GestureLeft, GestureRight, GestureNear, GestureFar}

// Environment is one environmental reading. Nil fields were not measured.
type Environment struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	HumidityPct  *float64 `json:"humidity_pct,omitempty"`
	MQ2PPM       *float64 `json:"mq2_ppm,omitempty"`
	MQ9PPM       *float64 `json:"mq9_ppm,omitempty"`
	IRTempC      *float64 `json:"ir_temp_c,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// random is a goroutine-safe source for simulated readings.
type random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newRandom(seed uint64) *random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// uniform returns a value in [lo, hi).
func (r *random) uniform(lo, hi float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.Float64()*(hi-lo)
}

func (r *random) chance(p float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < p
}

func (r *random) intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
