package engine

import (
	"context"
	"time"

	"github.com/teslashibe/go-lumen/pkg/audioio"
	"github.com/teslashibe/go-lumen/pkg/gps"
	"github.com/teslashibe/go-lumen/pkg/persona"
	"github.com/teslashibe/go-lumen/pkg/sensors"
)

// The engine consumes its collaborators through these interfaces. Every
// method degrades to a zero value instead of failing; those that return
// an error are logged and treated as "nothing found".

type DistanceSensor interface {
	ReadDistance(ctx context.Context) (cm float64, ok bool)
}

type LocationSource interface {
	ReadLocation(ctx context.Context) gps.Location
}

type GestureSensor interface {
	ReadGesture(ctx context.Context) sensors.Gesture
}

type EnvironmentSensor interface {
	ReadEnvironment(ctx context.Context) sensors.Environment
}

type SoundDetector interface {
	DetectActivity(ctx context.Context) audioio.Activity
}

type Camera interface {
	Capture(ctx context.Context, path string) (string, error)
}

type TextReader interface {
	ReadText(ctx context.Context, path string) (string, error)
}

type FaceRecognizer interface {
	Recognize(ctx context.Context, path string) ([]string, error)
}

type ObjectDetector interface {
	DetectObjects(ctx context.Context, path string) ([]Object, error)
}

type Speaker interface {
	Speak(ctx context.Context, text string)
}

type Haptics interface {
	Buzz(ctx context.Context, intensity float64, d time.Duration)
}

type Recognizer interface {
	ListenOnce(ctx context.Context, timeout time.Duration) string
}

type Persona interface {
	Get() persona.State
	UpdateOnEvent(event string, payload map[string]any) (persona.State, error)
	StepDecay(rate float64) (persona.State, error)
}

type EventLog interface {
	Append(kind string, payload map[string]any) error
}

// Object is one detected object.
type Object struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"bbox"`
}

// Deps bundles the engine's collaborators. Nil fields are replaced with
// inert stand-ins.
type Deps struct {
	Distance    DistanceSensor
	Location    LocationSource
	Gesture     GestureSensor
	Environment EnvironmentSensor
	Sound       SoundDetector
	Camera      Camera
	OCR         TextReader
	Faces       FaceRecognizer
	Objects     ObjectDetector
	Speaker     Speaker
	Haptics     Haptics
	Voice       Recognizer
	Persona     Persona
	Events      EventLog
}

func (d Deps) withDefaults() Deps {
	if d.Distance == nil {
		d.Distance = nop{}
	}
	if d.Location == nil {
		d.Location = nop{}
	}
	if d.Gesture == nil {
		d.Gesture = nop{}
	}
	if d.Environment == nil {
		d.Environment = nop{}
	}
	if d.Sound == nil {
		d.Sound = nop{}
	}
	if d.Camera == nil {
		d.Camera = nop{}
	}
	if d.OCR == nil {
		d.OCR = nop{}
	}
	if d.Faces == nil {
		d.Faces = nop{}
	}
	if d.Objects == nil {
		d.Objects = nop{}
	}
	if d.Speaker == nil {
		d.Speaker = nop{}
	}
	if d.Haptics == nil {
		d.Haptics = nop{}
	}
	if d.Voice == nil {
		d.Voice = nop{}
	}
	if d.Persona == nil {
		d.Persona = nopPersona{}
	}
	if d.Events == nil {
		d.Events = nop{}
	}
	return d
}

type nop struct{}

func (nop) ReadDistance(context.Context) (float64, bool) { return 0, false }
func (nop) ReadLocation(context.Context) gps.Location { return gps.Location{Err: gps.ErrPortUnavailable} }
func (nop) ReadGesture(context.Context) sensors.Gesture { return sensors.GestureNone }
func (nop) ReadEnvironment(context.Context) sensors.Environment { return sensors.Environment{} }
func (nop) DetectActivity(context.Context) audioio.Activity { return audioio.Activity{} }
func (nop) Capture(_ context.Context, path string) (string, error) { return path, nil }
func (nop) ReadText(context.Context, string) (string, error) { return "", nil }
func (nop) Recognize(context.Context, string) ([]string, error) { return nil, nil }
func (nop) DetectObjects(context.Context, string) ([]Object, error) { return nil, nil }
func (nop) Speak(context.Context, string) {}
func (nop) Buzz(context.Context, float64, time.Duration) {}
func (nop) ListenOnce(context.Context, time.Duration) string { return "" }
func (nop) Append(string, map[string]any) error { return nil }

type nopPersona struct{}

func (nopPersona) Get() persona.State { return persona.Default() }
func (nopPersona) UpdateOnEvent(string, map[string]any) (persona.State, error) {
	return persona.Default(), nil
}
func (nopPersona) StepDecay(float64) (persona.State, error) { return persona.Default(), nil }
