// Package camera captures still frames to disk for OCR, face
// recognition and object detection.
package camera

import "fmt"

// Placeholder dimensions used when no camera is attached.
const (
	PlaceholderWidth  = 640
	PlaceholderHeight = 480
	PlaceholderText   = "SIMULATED IMAGE"
)

// Config selects the capture device.
type Config struct {
	Index    int  `json:"index"`
	Width    int  `json:"width"`  // 0 keeps the device default
	Height   int  `json:"height"` // 0 keeps the device default
	Simulate bool `json:"simulate"`
}

// DefaultConfig returns the first camera at 640x480.
func DefaultConfig() Config {
	return Config{
		Width:  640,
		Height: 480,
	}
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *Config) Validate() []string {
	var errors []string
	if c.Index < 0 {
		errors = append(errors, "index must be >= 0")
	}
	if c.Width < 0 || c.Width > 4096 {
		errors = append(errors, fmt.Sprintf("width %d out of range [0,4096]", c.Width))
	}
	if c.Height < 0 || c.Height > 4096 {
		errors = append(errors, fmt.Sprintf("height %d out of range [0,4096]", c.Height))
	}
	return errors
}
