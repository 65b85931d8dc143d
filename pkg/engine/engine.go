package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-lumen/pkg/gps"
	"github.com/teslashibe/go-lumen/pkg/sensors"
)

// Spoken phrases that bracket a run.
const (
	PhraseStarted = "Assistive engine started."
	PhraseStopped = "Assistive engine stopped."
)

// Snapshot is one tick's sensor readings.
type Snapshot struct {
	Environment sensors.Environment
	DistanceCM  float64
	DistanceOK  bool
	Location    gps.Location
}

// Engine runs the decision loop. An Engine is good for one Run; build a
// new one for each run.
type Engine struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	mode   Mode
	target *Target

	lastObstacleAlert time.Time
	lastLocation      time.Time
	idleSince         time.Time
	lastSound         time.Time
	recentObjects     map[string]time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates an idle engine.
func New(deps Deps, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		deps:          deps.withDefaults(),
		cfg:           cfg,
		logger:        logger.With("component", "engine"),
		now:           time.Now,
		mode:          ModeIdle,
		recentObjects: make(map[string]time.Time),
		stopCh:        make(chan struct{}),
	}
	e.idleSince = e.now()
	return e
}

// Mode returns the current mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Target returns the navigation target, if any.
func (e *Engine) Target() *Target {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.target == nil {
		return nil
	}
	t := *e.target
	return &t
}

func (e *Engine) setMode(m Mode) {
	e.mu.Lock()
	e.mode = m
	e.mu.Unlock()
}

// Stop asks the loop to end before its next tick and cuts short the
// current sleep. Adapter calls already in flight are allowed to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *Engine) stopped() bool {
	select {
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

// Run loops until Stop, ctx cancellation, or iterations ticks (zero or
// less means no limit), sleeping interval between ticks.
func (e *Engine) Run(ctx context.Context, iterations int, interval time.Duration) {
	e.logger.Info("engine started", "iterations", iterations, "interval", interval)
	e.say(ctx, PhraseStarted)

	for count := 0; ; {
		if e.stopped() || ctx.Err() != nil {
			break
		}
		e.Tick(ctx, count)
		e.sleep(ctx, interval)
		count++
		if iterations > 0 && count >= iterations {
			break
		}
	}

	e.say(context.WithoutCancel(ctx), PhraseStopped)
	e.logger.Info("engine stopped")
}

// Tick runs one iteration of the loop. count is the zero-based tick index.
func (e *Engine) Tick(ctx context.Context, count int) {
	e.HandleVoice(ctx, e.deps.Voice.ListenOnce(ctx, e.cfg.ListenTimeout))
	e.HandleGesture(ctx, e.deps.Gesture.ReadGesture(ctx))

	snap := e.Poll(ctx)

	act := e.deps.Sound.DetectActivity(ctx)
	now := e.now()
	if act.Active {
		e.lastSound = now
		if e.Mode() == ModeIdle {
			e.record("sound_activity", map[string]any{"rms": act.RMS})
			e.say(ctx, "I hear something. Let me take a look.")
			e.setMode(ModeDescribe)
		}
	}

	if e.Mode() == ModeIdle && e.shouldExplore(now, count) {
		e.say(ctx, "Exploring my surroundings.")
		e.setMode(ModeDescribe)
	}

	e.DecideAndAct(ctx, snap)

	if e.cfg.DecayEvery > 0 && count%e.cfg.DecayEvery == 0 {
		if _, err := e.deps.Persona.StepDecay(e.cfg.DecayRate); err != nil {
			e.logger.Warn("persona decay failed", "error", err)
		}
	}
}

// Poll reads every sensor once.
func (e *Engine) Poll(ctx context.Context) Snapshot {
	dist, ok := e.deps.Distance.ReadDistance(ctx)
	return Snapshot{
		Environment: e.deps.Environment.ReadEnvironment(ctx),
		DistanceCM:  dist,
		DistanceOK:  ok,
		Location:    e.deps.Location.ReadLocation(ctx),
	}
}

// DecideAndAct runs safety checks, then the current mode's action.
func (e *Engine) DecideAndAct(ctx context.Context, snap Snapshot) {
	e.checkObstacle(ctx, snap.DistanceCM, snap.DistanceOK)
	e.checkEnvironment(ctx, snap.Environment)

	mode := e.Mode()
	switch mode {
	case ModeNavigation:
		e.navigationStep(ctx, snap.Location)
	case ModeReading:
		e.readingStep(ctx)
	case ModeDescribe:
		e.describeStep(ctx)
	case ModeStatus:
		e.statusStep(ctx, snap.Environment)
	}
	if mode.OneShot() {
		e.setMode(ModeIdle)
	}

	if e.Mode() != ModeIdle {
		e.idleSince = e.now()
	}
}

// shouldExplore gates autonomous Describe: quiet and idle long enough,
// curious enough, and on a tick the curiosity-derived divisor selects.
func (e *Engine) shouldExplore(now time.Time, count int) bool {
	if now.Sub(e.lastSound) <= e.cfg.QuietFor || now.Sub(e.idleSince) <= e.cfg.IdleFor {
		return false
	}
	curiosity := e.deps.Persona.Get().Curiosity
	if curiosity <= e.cfg.CuriosityGate {
		return false
	}
	return count%ExploreDivisor(curiosity) == 0
}

// ExploreDivisor returns max(2, round(8 - 6*curiosity)).
func ExploreDivisor(curiosity float64) int {
	return max(2, int(math.Round(8-6*curiosity)))
}

func (e *Engine) say(ctx context.Context, text string) {
	e.logger.Debug("say", "text", text)
	e.deps.Speaker.Speak(ctx, text)
}

func (e *Engine) buzz(ctx context.Context, intensity float64, d time.Duration) {
	e.deps.Haptics.Buzz(ctx, intensity, d)
}

func (e *Engine) record(kind string, payload map[string]any) {
	if err := e.deps.Events.Append(kind, payload); err != nil {
		e.logger.Warn("event log append failed", "kind", kind, "error", err)
	}
}

func (e *Engine) personaEvent(event string, payload map[string]any) {
	if _, err := e.deps.Persona.UpdateOnEvent(event, payload); err != nil {
		e.logger.Warn("persona update failed", "event", event, "error", err)
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-e.stopCh:
	}
}
