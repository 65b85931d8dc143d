package engine

import (
	"context"
	"strings"

	"github.com/teslashibe/go-lumen/pkg/persona"
	"github.com/teslashibe/go-lumen/pkg/sensors"
)

// LowPatience is the patience below which an interruption draws a
// complaint.
const LowPatience = 0.3

// HandleVoice applies a recognized utterance. Blank text and recognizer
// error strings are ignored.
func (e *Engine) HandleVoice(ctx context.Context, text string) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" || strings.HasPrefix(t, "error") {
		return
	}
	e.record("voice", map[string]any{"text": t})

	switch {
	case strings.Contains(t, "navigate"):
		place := strings.TrimSpace(strings.ReplaceAll(t, "navigate to", ""))
		if place == "" {
			place = "destination"
		}
		e.mu.Lock()
		e.target = &Target{Name: place}
		e.mode = ModeNavigation
		e.mu.Unlock()
		e.say(ctx, "Navigation mode. Heading to "+place+".")

	case strings.HasPrefix(t, "read") || strings.Contains(t, "read text"):
		e.setMode(ModeReading)
		e.say(ctx, "Reading mode.")

	case strings.Contains(t, "describe") || strings.Contains(t, "what's around"):
		e.setMode(ModeDescribe)
		e.say(ctx, "Describe mode.")

	case strings.Contains(t, "status") || strings.Contains(t, "how am i"):
		e.setMode(ModeStatus)
		e.say(ctx, "Status mode.")

	case strings.Contains(t, "stop") || strings.Contains(t, "idle"):
		e.setMode(ModeIdle)
		e.say(ctx, "Idle mode.")
		e.interrupted(ctx)
	}
}

func (e *Engine) interrupted(ctx context.Context) {
	state, err := e.deps.Persona.UpdateOnEvent(persona.EventInterrupt, map[string]any{})
	if err != nil {
		e.logger.Warn("persona update failed", "event", persona.EventInterrupt, "error", err)
		state = e.deps.Persona.Get()
	}
	if state.Patience < LowPatience {
		e.say(ctx, "Hey, I'm busy. Please don't interrupt me so often.")
	}
}

// gestureModes maps gestures to modes. GestureFar has no mapping.
var gestureModes = map[sensors.Gesture]Mode{
	sensors.GestureUp:    ModeNavigation,
	sensors.GestureDown:  ModeIdle,
	sensors.GestureLeft:  ModeReading,
	sensors.GestureRight: ModeDescribe,
	sensors.GestureNear:  ModeStatus,
}

var modePhrases = map[Mode]string{
	ModeIdle:       "Idle mode.",
	ModeNavigation: "Navigation mode.",
	ModeReading:    "Reading mode.",
	ModeDescribe:   "Describe mode.",
	ModeStatus:     "Status mode.",
}

// HandleGesture applies a gesture. Any resulting non-idle mode resets the
// idle timer.
func (e *Engine) HandleGesture(ctx context.Context, g sensors.Gesture) {
	if m, ok := gestureModes[g]; ok {
		e.setMode(m)
		e.say(ctx, modePhrases[m])
	}
	if e.Mode() != ModeIdle {
		e.idleSince = e.now()
	}
}
