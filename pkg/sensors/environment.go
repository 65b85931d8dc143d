package sensors

import (
	"context"
	"log/slog"
)

// EnvironmentBackend reads the DHT22, gas and IR sensors.
type EnvironmentBackend interface {
	ReadEnvironment(ctx context.Context) (RawEnvironment, error)
}

// RawEnvironment is one backend sample. The DHT22 and gas channels arrive
// already scaled; the IR channel is the MLX90614 object-temperature word
// as read off the bus.
type RawEnvironment struct {
	TemperatureC *float64
	HumidityPct  *float64
	MQ2PPM       *float64
	MQ9PPM       *float64
	IRObjectRaw  *uint16
}

// EnvironmentReader returns environmental readings.
type EnvironmentReader struct {
	backend  EnvironmentBackend
	simulate bool
	rand     *random
	logger   *slog.Logger
}

// NewEnvironmentReader reads from backend. In simulation it returns
// plausible random values; without a backend it returns an empty reading.
func NewEnvironmentReader(backend EnvironmentBackend, simulate bool, logger *slog.Logger) *EnvironmentReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnvironmentReader{
		backend:  backend,
		simulate: simulate,
		rand:     newRandom(0),
		logger:   logger.With("component", "sensors.environment"),
	}
}

// ReadEnvironment never fails; missing sensors leave their field nil.
func (r *EnvironmentReader) ReadEnvironment(ctx context.Context) Environment {
	if r.simulate {
		return Environment{
			TemperatureC: Float(round1(r.rand.uniform(20, 28))),
			HumidityPct:  Float(round1(r.rand.uniform(30, 60))),
			MQ2PPM:       Float(round1(r.rand.uniform(50, 300))),
			MQ9PPM:       Float(round1(r.rand.uniform(10, 100))),
			IRTempC:      Float(round1(r.rand.uniform(20, 30))),
		}
	}
	if r.backend == nil {
		return Environment{}
	}
	raw, err := r.backend.ReadEnvironment(ctx)
	if err != nil {
		r.logger.Debug("read failed", "error", err)
		return Environment{}
	}
	env := Environment{
		TemperatureC: raw.TemperatureC,
		HumidityPct:  raw.HumidityPct,
		MQ2PPM:       raw.MQ2PPM,
		MQ9PPM:       raw.MQ9PPM,
	}
	if raw.IRObjectRaw != nil {
		env.IRTempC = Float(MLX90614Celsius(*raw.IRObjectRaw))
	}
	return env
}

// MLX90614Celsius converts a raw object-temperature word read over SMBus
// (little-endian on the wire) to degrees Celsius. One unit is 0.02 K.
func MLX90614Celsius(raw uint16) float64 {
	swapped := raw<<8 | raw>>8
	return float64(swapped)*0.02 - 273.15
}
