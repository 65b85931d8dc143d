package engine

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/teslashibe/go-lumen/internal/log"
	"github.com/teslashibe/go-lumen/pkg/audioio"
	"github.com/teslashibe/go-lumen/pkg/gps"
	"github.com/teslashibe/go-lumen/pkg/memory"
	"github.com/teslashibe/go-lumen/pkg/persona"
	"github.com/teslashibe/go-lumen/pkg/sensors"
)

type speaker struct {
	mu   sync.Mutex
	said []string
}

func (s *speaker) Speak(_ context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, text)
}

func (s *speaker) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.said)
}

type buzz struct {
	intensity float64
	d         time.Duration
}

type motor struct{ buzzes []buzz }

func (m *motor) Buzz(_ context.Context, i float64, d time.Duration) {
	m.buzzes = append(m.buzzes, buzz{i, d})
}

type entry struct {
	Kind    string
	Payload map[string]any
}

type events struct {
	mu      sync.Mutex
	entries []entry
}

func (e *events) Append(kind string, payload map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry{kind, payload})
	return nil
}

func (e *events) kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, x := range e.entries {
		out = append(out, x.Kind)
	}
	return out
}

type fakePersona struct {
	mu     sync.Mutex
	state  persona.State
	events []string
	decays int
}

func newFakePersona() *fakePersona { return &fakePersona{state: persona.Default()} }

func (p *fakePersona) Get() persona.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePersona) UpdateOnEvent(event string, _ map[string]any) (persona.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.state, nil
}

func (p *fakePersona) StepDecay(float64) (persona.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decays++
	return p.state, nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time           { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type distance struct {
	cm float64
	ok bool
}

func (d distance) ReadDistance(context.Context) (float64, bool) { return d.cm, d.ok }

type location gps.Location

func (l location) ReadLocation(context.Context) gps.Location { return gps.Location(l) }

type environment sensors.Environment

func (e environment) ReadEnvironment(context.Context) sensors.Environment {
	return sensors.Environment(e)
}

type sound struct{ active bool }

func (s sound) DetectActivity(context.Context) audioio.Activity {
	return audioio.Activity{Active: s.active, RMS: 0.05}
}

type ocr struct {
	text string
	err  error
}

func (o ocr) ReadText(context.Context, string) (string, error) { return o.text, o.err }

type faces []string

func (f faces) Recognize(context.Context, string) ([]string, error) { return f, nil }

type objects []Object

func (o objects) DetectObjects(context.Context, string) ([]Object, error) { return o, nil }

type camera struct{ paths []string }

func (c *camera) Capture(_ context.Context, path string) (string, error) {
	c.paths = append(c.paths, path)
	return path, nil
}

type harness struct {
	e       *Engine
	speaker *speaker
	motor   *motor
	events  *events
	persona *fakePersona
	clock   *clock
}

func newHarness(t *testing.T, deps Deps) *harness {
	t.Helper()
	h := &harness{
		speaker: &speaker{},
		motor:   &motor{},
		events:  &events{},
		persona: newFakePersona(),
		clock:   &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	deps.Speaker = h.speaker
	deps.Haptics = h.motor
	deps.Events = h.events
	if deps.Persona == nil {
		deps.Persona = h.persona
	}
	h.e = New(deps, DefaultConfig(t.TempDir()), log.Discard())
	h.e.now = h.clock.Now
	h.e.idleSince = h.clock.Now()
	return h
}

func TestExploreDivisor(t *testing.T) {
	tests := []struct {
		curiosity float64
		want      int
	}{
		{0, 8},
		{0.5, 5},
		{0.75, 4},
		{0.9, 3},
		{1, 2},
	}
	for _, tt := range tests {
		if got := ExploreDivisor(tt.curiosity); got != tt.want {
			t.Errorf("ExploreDivisor(%v) = %d, want %d", tt.curiosity, got, tt.want)
		}
	}
}

func TestHandleVoice(t *testing.T) {
	tests := []struct {
		text   string
		mode   Mode
		said   []string
		target string
		logged bool
	}{
		{"Navigate to library", ModeNavigation, []string{"Navigation mode. Heading to library."}, "library", true},
		{"navigate", ModeNavigation, []string{"Navigation mode. Heading to destination."}, "destination", true},
		{"read this page", ModeReading, []string{"Reading mode."}, "", true},
		{"please read text", ModeReading, []string{"Reading mode."}, "", true},
		{"describe the room", ModeDescribe, []string{"Describe mode."}, "", true},
		{"what's around", ModeDescribe, []string{"Describe mode."}, "", true},
		{"status", ModeStatus, []string{"Status mode."}, "", true},
		{"how am i doing", ModeStatus, []string{"Status mode."}, "", true},
		{"stop", ModeIdle, []string{"Idle mode."}, "", true},
		{"hello there", ModeIdle, nil, "", true},
		{"Error: Audio input unavailable", ModeIdle, nil, "", false},
		{"   ", ModeIdle, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			h := newHarness(t, Deps{})
			h.e.HandleVoice(context.Background(), tt.text)

			if got := h.e.Mode(); got != tt.mode {
				t.Errorf("mode = %s, want %s", got, tt.mode)
			}
			if diff := cmp.Diff(tt.said, h.speaker.all()); diff != "" {
				t.Errorf("speech (-want +got):\n%s", diff)
			}
			if tt.target != "" {
				if tg := h.e.Target(); tg == nil || tg.Name != tt.target || tg.Lat != nil {
					t.Errorf("target = %+v, want %q", tg, tt.target)
				}
			}
			if logged := len(h.events.kinds()) == 1; logged != tt.logged {
				t.Errorf("voice event logged = %v, want %v", logged, tt.logged)
			}
		})
	}
}

func TestInterruptComplainsWhenImpatient(t *testing.T) {
	store := persona.New(memory.NewFileStore(filepath.Join(t.TempDir(), "persona.json")), log.Discard())
	h := newHarness(t, Deps{Persona: store})

	for i := 0; i < 3; i++ {
		h.e.HandleVoice(context.Background(), "stop")
	}

	want := []string{"Idle mode.", "Idle mode.", "Idle mode.", "Hey, I'm busy. Please don't interrupt me so often."}
	if diff := cmp.Diff(want, h.speaker.all()); diff != "" {
		t.Errorf("speech (-want +got):\n%s", diff)
	}
	if p := store.Get().Patience; p >= LowPatience {
		t.Errorf("patience = %v", p)
	}
}

func TestHandleGesture(t *testing.T) {
	tests := []struct {
		g    sensors.Gesture
		want Mode
		said string
	}{
		{sensors.GestureUp, ModeNavigation, "Navigation mode."},
		{sensors.GestureLeft, ModeReading, "Reading mode."},
		{sensors.GestureRight, ModeDescribe, "Describe mode."},
		{sensors.GestureNear, ModeStatus, "Status mode."},
		{sensors.GestureDown, ModeIdle, "Idle mode."},
	}
	for _, tt := range tests {
		h := newHarness(t, Deps{})
		h.e.setMode(ModeNavigation)
		h.clock.Advance(time.Minute)
		h.e.HandleGesture(context.Background(), tt.g)

		if got := h.e.Mode(); got != tt.want {
			t.Errorf("%s: mode = %s, want %s", tt.g, got, tt.want)
		}
		if diff := cmp.Diff([]string{tt.said}, h.speaker.all()); diff != "" {
			t.Errorf("%s: speech (-want +got):\n%s", tt.g, diff)
		}
		wantReset := tt.want != ModeIdle
		if reset := h.e.idleSince.Equal(h.clock.Now()); reset != wantReset {
			t.Errorf("%s: idle timer reset = %v", tt.g, reset)
		}
	}

	h := newHarness(t, Deps{})
	for _, g := range []sensors.Gesture{sensors.GestureFar, sensors.GestureNone} {
		h.e.HandleGesture(context.Background(), g)
	}
	if h.e.Mode() != ModeIdle || len(h.speaker.all()) != 0 {
		t.Error("far and none must not change mode")
	}
}

func TestObstacleAlerts(t *testing.T) {
	tests := []struct {
		cm    float64
		ok    bool
		said  []string
		buzz  []buzz
		event string
	}{
		{250, true, []string{"Careful, there's an edge ahead."}, []buzz{{1.0, 700 * time.Millisecond}}, "cliff"},
		{30, true, []string{"Obstacle very close ahead."}, []buzz{{1.0, 600 * time.Millisecond}}, "obstacle"},
		{40, true, []string{"Obstacle ahead."}, []buzz{{0.6, 300 * time.Millisecond}}, "obstacle"},
		{79.9, true, []string{"Obstacle ahead."}, []buzz{{0.6, 300 * time.Millisecond}}, "obstacle"},
		{80, true, nil, nil, ""},
		{150, true, nil, nil, ""},
		{200, true, nil, nil, ""},
		{10, false, nil, nil, ""},
	}
	for _, tt := range tests {
		h := newHarness(t, Deps{})
		h.e.DecideAndAct(context.Background(), Snapshot{DistanceCM: tt.cm, DistanceOK: tt.ok})

		if diff := cmp.Diff(tt.said, h.speaker.all()); diff != "" {
			t.Errorf("%v cm speech (-want +got):\n%s", tt.cm, diff)
		}
		if diff := cmp.Diff(tt.buzz, h.motor.buzzes, cmp.AllowUnexported(buzz{})); diff != "" {
			t.Errorf("%v cm haptics (-want +got):\n%s", tt.cm, diff)
		}
		if tt.event != "" {
			if diff := cmp.Diff([]string{tt.event}, h.events.kinds()); diff != "" {
				t.Errorf("%v cm events (-want +got):\n%s", tt.cm, diff)
			}
			if diff := cmp.Diff([]string{persona.EventObstacle}, h.persona.events); diff != "" {
				t.Errorf("%v cm persona (-want +got):\n%s", tt.cm, diff)
			}
		}
	}
}

func TestObstacleCooldown(t *testing.T) {
	h := newHarness(t, Deps{})
	ctx := context.Background()
	near := Snapshot{DistanceCM: 50, DistanceOK: true}
	edge := Snapshot{DistanceCM: 300, DistanceOK: true}

	h.e.DecideAndAct(ctx, near)
	h.clock.Advance(time.Second)
	h.e.DecideAndAct(ctx, edge)
	h.clock.Advance(time.Second)
	h.e.DecideAndAct(ctx, near)
	if got := len(h.speaker.all()); got != 1 {
		t.Fatalf("alerts within cooldown = %d, want 1", got)
	}

	h.clock.Advance(100 * time.Millisecond)
	h.e.DecideAndAct(ctx, edge)
	if got := h.speaker.all(); len(got) != 2 || got[1] != "Careful, there's an edge ahead." {
		t.Errorf("after cooldown: %v", got)
	}
}

func TestEnvironmentHazards(t *testing.T) {
	f := sensors.Float
	h := newHarness(t, Deps{})
	h.e.DecideAndAct(context.Background(), Snapshot{Environment: sensors.Environment{
		MQ2PPM:       f(250),
		MQ9PPM:       f(80),
		TemperatureC: f(36),
		HumidityPct:  f(20),
		IRTempC:      f(45),
	}})

	want := []string{
		"Warning: air quality poor.",
		"Warning: CO high.",
		"Temperature outside comfort range.",
		"Humidity outside comfort range.",
		"Object temperature unusual.",
	}
	if diff := cmp.Diff(want, h.speaker.all()); diff != "" {
		t.Errorf("speech (-want +got):\n%s", diff)
	}
	if len(h.motor.buzzes) != 2 {
		t.Errorf("buzzes = %v", h.motor.buzzes)
	}

	calm := newHarness(t, Deps{})
	calm.e.DecideAndAct(context.Background(), Snapshot{Environment: sensors.Environment{
		MQ2PPM:       f(200),
		MQ9PPM:       f(70),
		TemperatureC: f(10),
		HumidityPct:  f(70),
		IRTempC:      f(40),
	}})
	if got := calm.speaker.all(); len(got) != 0 {
		t.Errorf("boundary readings alerted: %v", got)
	}
}

func TestNavigationStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Deps{})
	h.e.setMode(ModeNavigation)

	h.e.DecideAndAct(ctx, Snapshot{Location: gps.Location{Err: gps.ErrPortUnavailable}})
	h.e.DecideAndAct(ctx, Snapshot{Location: gps.Location{}})
	fix := Snapshot{Location: gps.Location{Lat: 37.4219999, Lon: -122.0840575, Fix: true}}
	h.e.DecideAndAct(ctx, fix)
	h.clock.Advance(5 * time.Second)
	h.e.DecideAndAct(ctx, fix)
	h.clock.Advance(6 * time.Second)
	h.e.DecideAndAct(ctx, fix)

	want := []string{
		"GPS not available.",
		"Waiting for GPS fix.",
		"Location latitude 37.42200, longitude -122.08406.",
		"Location latitude 37.42200, longitude -122.08406.",
	}
	if diff := cmp.Diff(want, h.speaker.all()); diff != "" {
		t.Errorf("speech (-want +got):\n%s", diff)
	}
	if h.e.Mode() != ModeNavigation {
		t.Error("navigation should persist")
	}
}

func TestReadingStep(t *testing.T) {
	cam := &camera{}
	h := newHarness(t, Deps{Camera: cam, OCR: ocr{text: "  EXIT  "}})
	h.e.setMode(ModeReading)
	h.e.DecideAndAct(context.Background(), Snapshot{})

	if diff := cmp.Diff([]string{"EXIT"}, h.speaker.all()); diff != "" {
		t.Errorf("speech (-want +got):\n%s", diff)
	}
	if h.e.Mode() != ModeIdle {
		t.Error("reading should return to idle")
	}
	if len(cam.paths) != 1 || filepath.Base(cam.paths[0]) != "read.jpg" {
		t.Errorf("captured %v", cam.paths)
	}

	h = newHarness(t, Deps{OCR: ocr{err: errors.New("no tesseract")}})
	h.e.setMode(ModeReading)
	h.e.DecideAndAct(context.Background(), Snapshot{})
	if diff := cmp.Diff([]string{"No text detected."}, h.speaker.all()); diff != "" {
		t.Errorf("speech (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"read"}, h.events.kinds()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestDescribeStep(t *testing.T) {
	h := newHarness(t, Deps{
		Faces:   faces{"Alice", Unknown, "Alice"},
		Objects: objects{{Label: "cat", Confidence: 0.9}, {Label: "person", Confidence: 0.95}},
	})
	ctx := context.Background()

	h.e.setMode(ModeDescribe)
	h.e.DecideAndAct(ctx, Snapshot{})

	if diff := cmp.Diff([]string{"I can see Alice, and nearby: cat."}, h.speaker.all()); diff != "" {
		t.Errorf("speech (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{persona.EventGreet, persona.EventNovelObject}, h.persona.events); diff != "" {
		t.Errorf("persona events (-want +got):\n%s", diff)
	}
	if h.e.Mode() != ModeIdle {
		t.Error("describe should return to idle")
	}
	got := h.events.entries[0]
	if got.Kind != "describe" || !cmp.Equal(got.Payload["recognized"], []string{"Alice", Unknown, "Alice"}) {
		t.Errorf("describe event = %+v", got)
	}

	// Seen again inside the novelty window: no new novel_object.
	h.clock.Advance(time.Minute)
	h.e.setMode(ModeDescribe)
	h.e.DecideAndAct(ctx, Snapshot{})
	if n := slices.Index(h.persona.events[2:], persona.EventNovelObject); n != -1 {
		t.Errorf("cat reported novel twice: %v", h.persona.events)
	}

	// After the window it is novel again.
	h.clock.Advance(301 * time.Second)
	h.e.setMode(ModeDescribe)
	h.e.DecideAndAct(ctx, Snapshot{})
	if h.persona.events[len(h.persona.events)-1] != persona.EventNovelObject {
		t.Errorf("cat should be novel after the window: %v", h.persona.events)
	}
}

func TestDescribeAnnouncement(t *testing.T) {
	tests := []struct {
		name   string
		names  []string
		labels []string
		want   string
	}{
		{"known only", []string{"Alice", "Bob"}, nil, "I can see Alice, Bob."},
		{"known and objects", []string{"Alice"}, []string{"cat", "cup"}, "I can see Alice, and nearby: cat, cup."},
		{"strangers and objects", []string{Unknown}, []string{"chair"}, "I don't recognize anyone, but I notice chair."},
		{"strangers only", []string{Unknown}, nil, "I don't recognize anyone here."},
		{"objects only", nil, []string{"bottle"}, "I notice bottle."},
		{"nothing", nil, nil, "Captured an image of the surroundings."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescribeAnnouncement(tt.names, KnownPeople(tt.names), tt.labels)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTopLabels(t *testing.T) {
	objs := []Object{
		{Label: "cup", Confidence: 0.6},
		{Label: "person", Confidence: 0.99},
		{Label: "chair", Confidence: 0.7},
		{Label: "dog", Confidence: 0.8},
		{Label: "bottle", Confidence: 0.65},
	}
	if diff := cmp.Diff([]string{"dog", "chair"}, TopLabels(objs, 3)); diff != "" {
		t.Errorf("TopLabels (-want +got):\n%s", diff)
	}
	if got := TopLabels(nil, 3); got != nil {
		t.Errorf("TopLabels(nil) = %v", got)
	}
	if objs[0].Label != "cup" {
		t.Error("input slice was reordered")
	}
}

func TestStatusStep(t *testing.T) {
	h := newHarness(t, Deps{})
	h.e.setMode(ModeStatus)
	h.e.DecideAndAct(context.Background(), Snapshot{Environment: sensors.Environment{TemperatureC: sensors.Float(22.5)}})

	if diff := cmp.Diff([]string{"Temperature 22.5 Celsius, humidity unknown percent."}, h.speaker.all()); diff != "" {
		t.Errorf("speech (-want +got):\n%s", diff)
	}
	if h.e.Mode() != ModeIdle {
		t.Error("status should return to idle")
	}
}

func TestOneShotModesReturnToIdle(t *testing.T) {
	tests := []struct {
		mode    Mode
		oneShot bool
	}{
		{ModeIdle, false},
		{ModeNavigation, false},
		{ModeReading, true},
		{ModeDescribe, true},
		{ModeStatus, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.OneShot(); got != tt.oneShot {
				t.Fatalf("OneShot = %v, want %v", got, tt.oneShot)
			}
			h := newHarness(t, Deps{})
			h.e.setMode(tt.mode)
			h.e.DecideAndAct(context.Background(), Snapshot{Location: gps.Location{Fix: true}})

			want := tt.mode
			if tt.oneShot {
				want = ModeIdle
			}
			if got := h.e.Mode(); got != want {
				t.Errorf("mode after one tick = %q, want %q", got, want)
			}
		})
	}
}

func TestSoundTriggersDescribe(t *testing.T) {
	h := newHarness(t, Deps{Sound: sound{active: true}})
	h.e.Tick(context.Background(), 1)

	said := h.speaker.all()
	if len(said) != 2 || said[0] != "I hear something. Let me take a look." || said[1] != "Captured an image of the surroundings." {
		t.Errorf("speech = %v", said)
	}
	if diff := cmp.Diff([]string{"sound_activity", "describe"}, h.events.kinds()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestAutonomousExploration(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, Deps{})
	h.clock.Advance(11 * time.Second)
	h.e.Tick(ctx, 1) // 1 % 5 != 0
	if len(h.speaker.all()) != 0 {
		t.Fatalf("explored off-cycle: %v", h.speaker.all())
	}
	h.e.Tick(ctx, 5)
	if said := h.speaker.all(); len(said) == 0 || said[0] != "Exploring my surroundings." {
		t.Errorf("speech = %v", said)
	}

	bored := newHarness(t, Deps{})
	bored.persona.state.Curiosity = 0.4
	bored.clock.Advance(time.Hour)
	bored.e.Tick(ctx, 0)
	if len(bored.speaker.all()) != 0 {
		t.Error("curiosity at the gate must not explore")
	}

	fresh := newHarness(t, Deps{})
	fresh.clock.Advance(9 * time.Second)
	fresh.e.Tick(ctx, 0)
	if len(fresh.speaker.all()) != 0 {
		t.Error("must be idle for more than 10s before exploring")
	}
}

func TestRunIterations(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, Deps{})
	h.e.Run(context.Background(), 6, 0)

	said := h.speaker.all()
	if said[0] != PhraseStarted || said[len(said)-1] != PhraseStopped {
		t.Errorf("speech = %v", said)
	}
	if h.persona.decays != 2 {
		t.Errorf("decays = %d, want 2 (ticks 0 and 5)", h.persona.decays)
	}
}

func TestStopInterruptsSleep(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, Deps{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.e.Run(context.Background(), 0, time.Hour)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(h.speaker.all()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.e.Stop()
	h.e.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if said := h.speaker.all(); said[len(said)-1] != PhraseStopped {
		t.Errorf("speech = %v", said)
	}
}

func TestPoll(t *testing.T) {
	h := newHarness(t, Deps{
		Distance:    distance{cm: 120, ok: true},
		Location:    location{Lat: 1.5, Lon: 2.5, Fix: true, Satellites: 7},
		Environment: environment{TemperatureC: sensors.Float(21)},
	})
	snap := h.e.Poll(context.Background())

	if snap.DistanceCM != 120 || !snap.DistanceOK {
		t.Errorf("distance = %v, %v", snap.DistanceCM, snap.DistanceOK)
	}
	if diff := cmp.Diff(gps.Location{Lat: 1.5, Lon: 2.5, Fix: true, Satellites: 7}, snap.Location); diff != "" {
		t.Errorf("location (-want +got):\n%s", diff)
	}
	if v := snap.Environment.TemperatureC; v == nil || *v != 21 {
		t.Errorf("temperature = %v", v)
	}

	bare := New(Deps{}, DefaultConfig(""), log.Discard()).Poll(context.Background())
	if bare.DistanceOK || bare.Location.Err != gps.ErrPortUnavailable {
		t.Errorf("nil deps snapshot = %+v", bare)
	}
}
