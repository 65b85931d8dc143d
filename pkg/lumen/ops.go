package lumen

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/teslashibe/go-lumen/internal/config"
	"github.com/teslashibe/go-lumen/pkg/engine"
	"github.com/teslashibe/go-lumen/pkg/gps"
	"github.com/teslashibe/go-lumen/pkg/memory"
	"github.com/teslashibe/go-lumen/pkg/persona"
	"github.com/teslashibe/go-lumen/pkg/sensors"
	"github.com/teslashibe/go-lumen/pkg/tts"
)

// ErrNoRecognizer is returned when wake listening is requested without a
// speech recognizer.
var ErrNoRecognizer = errors.New("lumen: no speech recognizer configured")

// Status is a point-in-time summary for the control surfaces.
type Status struct {
	Simulate      bool                `json:"simulate"`
	EngineRunning bool                `json:"engine_running"`
	Env           sensors.Environment `json:"env"`
	Location      gps.Location        `json:"location"`
	Mode          engine.Mode         `json:"mode,omitempty"`
}

// Status reads the environment and location once.
func (a *App) Status(ctx context.Context) Status {
	mode, running := a.controller.Mode()
	return Status{
		Simulate:      a.cfg.Simulate,
		EngineRunning: running,
		Env:           a.Environment.ReadEnvironment(ctx),
		Location:      a.GPS.ReadLocation(ctx),
		Mode:          mode,
	}
}

// Speak says text.
func (a *App) Speak(ctx context.Context, text string) {
	a.Speaker.Speak(ctx, text)
}

// Capture saves a frame to path.
func (a *App) Capture(ctx context.Context, path string) (string, error) {
	return a.Camera.Capture(ctx, path)
}

// ReadText reads the image at path aloud, capturing one first if the file
// does not exist yet.
func (a *App) ReadText(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if _, err := a.Camera.Capture(ctx, path); err != nil {
			a.logger.Warn("capture before read failed", "path", path, "error", err)
		}
	}
	text, err := a.OCR.ReadText(ctx, path)
	if err != nil {
		return "", err
	}
	a.Speaker.Speak(ctx, text)
	return text, nil
}

// Location reads the GPS once.
func (a *App) Location(ctx context.Context) gps.Location {
	return a.GPS.ReadLocation(ctx)
}

// ReadEnvironment reads the environmental sensors once.
func (a *App) ReadEnvironment(ctx context.Context) sensors.Environment {
	return a.Environment.ReadEnvironment(ctx)
}

// Gesture reads one gesture. Without a sensor it reports none.
func (a *App) Gesture(ctx context.Context) sensors.Gesture {
	if a.gesture == nil {
		return sensors.GestureNone
	}
	return a.gesture.ReadGesture(ctx)
}

// Listen records one utterance. Without a recognizer it hears nothing.
func (a *App) Listen(ctx context.Context, timeout time.Duration) string {
	if a.voice == nil {
		return ""
	}
	return a.voice.ListenOnce(ctx, timeout)
}

// StartAssist starts an engine run. iterations <= 0 runs until stopped.
func (a *App) StartAssist(iterations int, interval time.Duration) error {
	return a.controller.Start(iterations, interval)
}

// StopAssist asks the running engine to stop and reports whether one
// was running.
func (a *App) StopAssist() bool {
	return a.controller.Stop()
}

// WaitAssist blocks until the current run ends.
func (a *App) WaitAssist() {
	a.controller.Wait()
}

// AssistRunning reports whether an engine run is in progress.
func (a *App) AssistRunning() bool {
	return a.controller.IsRunning()
}

// WakeEnabled reports whether the wake listener is on.
func (a *App) WakeEnabled() bool {
	a.wakeMu.Lock()
	defer a.wakeMu.Unlock()
	return a.wakeOn
}

// SetWake turns the wake listener on or off and returns the new state.
// Hearing the wake word starts an unbounded run and greets the user.
func (a *App) SetWake(enabled bool, interval time.Duration) (bool, error) {
	a.wakeMu.Lock()
	defer a.wakeMu.Unlock()

	switch {
	case enabled && !a.wakeOn:
		if a.voice == nil {
			return false, ErrNoRecognizer
		}
		a.wakeOn = a.wake.Start(a.ctx, a.onWake, interval)
	case !enabled && a.wakeOn:
		a.wake.Stop()
		a.wakeOn = false
	}
	return a.wakeOn, nil
}

func (a *App) onWake() error {
	err := a.controller.Start(0, time.Second)
	if err != nil && !errors.Is(err, engine.ErrAlreadyRunning) {
		return err
	}
	a.Speaker.Speak(a.ctx, WakeGreeting)
	return nil
}

// SpeechSettings returns the current speech settings.
func (a *App) SpeechSettings() tts.Settings {
	return a.Speaker.Settings()
}

// SetSpeechSettings updates speech settings; empty fields are unchanged.
func (a *App) SetSpeechSettings(s tts.Settings) tts.Settings {
	return a.Speaker.SetSettings(s)
}

// ListPeople returns enrolled names, sorted.
func (a *App) ListPeople() ([]string, error) {
	return a.People.List()
}

// Enroll stores a face for name. An empty path captures a new picture.
func (a *App) Enroll(ctx context.Context, name, path string) error {
	return a.People.Enroll(ctx, name, path)
}

// Forget removes an enrolled person.
func (a *App) Forget(name string) error {
	return a.People.Forget(name)
}

// Recognize names the faces in path. An empty path captures a new picture.
func (a *App) Recognize(ctx context.Context, path string) ([]string, error) {
	return a.People.Recognize(ctx, path)
}

// PersonaState returns the persona.
func (a *App) PersonaState() persona.State {
	return a.Persona.Get()
}

// PersonaEvent applies a persona event.
func (a *App) PersonaEvent(event string, payload map[string]any) (persona.State, error) {
	return a.Persona.UpdateOnEvent(event, payload)
}

// Events returns the last limit event-log entries.
func (a *App) Events(limit int) ([]memory.Event, error) {
	return a.Journal.List(limit)
}

// Subscribe calls fn after every event-log append.
func (a *App) Subscribe(fn func(memory.Event)) {
	a.Journal.Subscribe(fn)
}

// WatchConfig reloads path on change and applies the speech settings
// from it. It returns once the watcher is running; the watcher stops
// with the app.
func (a *App) WatchConfig(path string) error {
	w, err := config.NewWatcher(path, a.logger, a.applyConfig)
	if err != nil {
		return err
	}
	a.watchers = append(a.watchers, w)
	go w.Run(a.ctx)
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.Speaker.SetSettings(tts.Settings{
		Language:   cfg.Speech.Language,
		Engine:     cfg.Speech.Engine,
		PiperVoice: cfg.Speech.PiperVoice,
	})
	if cfg.Voice.WakeEnabled != a.WakeEnabled() {
		if _, err := a.SetWake(cfg.Voice.WakeEnabled, cfg.Voice.WakeInterval); err != nil {
			a.logger.Warn("wake toggle from config failed", "error", err)
		}
	}
}
