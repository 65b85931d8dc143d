// Package engine is lumen's fusion and decision loop.
//
// Each tick the engine listens for a voice command, reads a gesture, polls
// the sensors, checks for ambient sound and idle curiosity, then acts:
// safety alerts first, then whatever the current mode asks for. Reading,
// Describe and Status run once and drop back to Idle; Navigation persists
// until the user picks something else.
package engine

// Mode is the engine's current behavior.
type Mode string

const (
	ModeIdle       Mode = "idle"
	ModeNavigation Mode = "navigation"
	ModeReading    Mode = "reading"
	ModeDescribe   Mode = "describe"
	ModeStatus     Mode = "status"
)

// OneShot reports whether m returns to Idle after acting once.
func (m Mode) OneShot() bool {
	switch m {
	case ModeReading, ModeDescribe, ModeStatus:
		return true
	}
	return false
}

// Target is a navigation destination. Coordinates are never resolved from
// the name; Lat and Lon stay nil unless a caller sets them.
type Target struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}
