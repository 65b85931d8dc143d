// Package gps reads position fixes from an NMEA receiver on a serial port.
package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Error strings reported in Location.Err.
const (
	ErrPortUnavailable = "Serial port unavailable"
	ErrNoFix           = "No fix"
)

// maxLines bounds how many sentences one read inspects.
const maxLines = 50

// Location is a single position report. Err is set instead of a position
// when the receiver could not be read.
type Location struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Satellites int     `json:"sat,omitempty"`
	Fix        bool    `json:"fix"`
	Err        string  `json:"error,omitempty"`
}

// simulatedFix is returned when no receiver is configured.
var simulatedFix = Location{Lat: 37.4219999, Lon: -122.0840575, Satellites: 8, Fix: true}

// Opener opens the serial port.
type Opener func(port string, baud int, timeout time.Duration) (io.ReadCloser, error)

// Receiver reads fixes from a serial NMEA stream.
type Receiver struct {
	port     string
	baud     int
	timeout  time.Duration
	simulate bool
	open     Opener
	logger   *slog.Logger
}

// Config configures a Receiver.
type Config struct {
	Port     string
	Baudrate int
	Timeout  time.Duration
	Simulate bool
}

// New creates a Receiver. Simulation, or an empty port, yields a fixed
// coordinate.
func New(cfg Config, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Baudrate == 0 {
		cfg.Baudrate = 9600
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Receiver{
		port:     cfg.Port,
		baud:     cfg.Baudrate,
		timeout:  cfg.Timeout,
		simulate: cfg.Simulate,
		open:     openSerial,
		logger:   logger.With("component", "gps"),
	}
}

func openSerial(port string, baud int, timeout time.Duration) (io.ReadCloser, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// ReadLocation returns the first RMC fix among the next sentences.
func (r *Receiver) ReadLocation(ctx context.Context) Location {
	if r.simulate || r.port == "" {
		return simulatedFix
	}

	port, err := r.open(r.port, r.baud, r.timeout)
	if err != nil {
		r.logger.Debug("open failed", "port", r.port, "error", err)
		return Location{Err: ErrPortUnavailable}
	}
	defer port.Close()

	br := bufio.NewReader(port)
	for i := 0; i < maxLines; i++ {
		if ctx.Err() != nil {
			break
		}
		line, err := br.ReadString('\n')
		if loc, ok := ParseRMC(strings.TrimSpace(line)); ok {
			return loc
		}
		if err != nil {
			break
		}
	}
	return Location{Err: ErrNoFix}
}

// ParseRMC decodes an active ($GPRMC/$GNRMC with status A) sentence.
func ParseRMC(line string) (Location, bool) {
	if !strings.Contains(line, ",A,") {
		return Location{}, false
	}
	if !strings.Contains(line, "GPRMC") && !strings.Contains(line, "GNRMC") {
		return Location{}, false
	}
	parts := strings.Split(line, ",")
	if len(parts) < 7 {
		return Location{}, false
	}
	lat, err := NMEAToDegrees(parts[3], parts[4])
	if err != nil {
		return Location{}, false
	}
	lon, err := NMEAToDegrees(parts[5], parts[6])
	if err != nil {
		return Location{}, false
	}
	return Location{Lat: lat, Lon: lon, Fix: true}, true
}

var errMalformed = errors.New("gps: malformed NMEA coordinate")

// NMEAToDegrees converts ddmm.mmmm or dddmm.mmmm into signed decimal
// degrees. S and W are negative.
func NMEAToDegrees(value, direction string) (float64, error) {
	if len(value) < 4 {
		return 0, errMalformed
	}
	whole, _, _ := strings.Cut(value, ".")
	degLen := 2
	if n := len(whole); n == 4 || n == 5 {
		degLen = n - 2
	}
	deg, err := strconv.ParseFloat(value[:degLen], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformed, err)
	}
	minutes, err := strconv.ParseFloat(value[degLen:], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformed, err)
	}
	out := deg + minutes/60
	if direction == "S" || direction == "W" {
		out = -out
	}
	return out, nil
}
