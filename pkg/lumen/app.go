// Package lumen wires config into adapters and owns the engine.
package lumen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/teslashibe/go-lumen/internal/config"
	"github.com/teslashibe/go-lumen/pkg/audioio"
	"github.com/teslashibe/go-lumen/pkg/camera"
	"github.com/teslashibe/go-lumen/pkg/engine"
	"github.com/teslashibe/go-lumen/pkg/faces"
	"github.com/teslashibe/go-lumen/pkg/gps"
	"github.com/teslashibe/go-lumen/pkg/haptics"
	"github.com/teslashibe/go-lumen/pkg/memory"
	"github.com/teslashibe/go-lumen/pkg/objects"
	"github.com/teslashibe/go-lumen/pkg/persona"
	"github.com/teslashibe/go-lumen/pkg/sensors"
	"github.com/teslashibe/go-lumen/pkg/tts"
	"github.com/teslashibe/go-lumen/pkg/vision"
	"github.com/teslashibe/go-lumen/pkg/voice"
)

// WakeGreeting is spoken when the wake word starts a run.
const WakeGreeting = "Hello, how can I help?"

// soundWindow is how much audio each sound-activity check records.
const soundWindow = 150 * time.Millisecond

// App owns every adapter built from one Config, the engine controller and
// the wake listener.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Speaker     *tts.Speaker
	Camera      *camera.Camera
	OCR         *vision.OCR
	People      *faces.Registry
	Objects     objects.Detector
	Persona     *persona.Store
	Journal     *memory.Journal
	GPS         *gps.Receiver
	Environment *sensors.EnvironmentReader
	Haptics     *haptics.Motor

	distance engine.DistanceSensor
	gesture  engine.GestureSensor
	sound    engine.SoundDetector
	voice    voice.Recognizer

	controller *engine.Controller
	wake       *voice.WakeListener
	wakeMu     sync.Mutex
	wakeOn     bool

	ctx      context.Context
	cancel   context.CancelFunc
	closers  []io.Closer
	watchers []*config.Watcher
}

// New builds the application. Adapters whose hardware or models are
// missing fall back to simulated or inert versions; only storage errors
// fail construction.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &App{
		cfg:    cfg,
		logger: logger.With("component", "lumen"),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.initSpeech()
	if err := a.initVision(); err != nil {
		a.Close()
		return nil, err
	}
	a.initSensors()

	a.controller = engine.NewController(ctx, a.NewEngine, logger)
	a.wake = voice.NewWakeListener(a.voice, logger)

	a.logger.Info("lumen ready",
		"simulate", cfg.Simulate,
		"persona", cfg.Storage.PersonaBackend,
		"events", cfg.Storage.EventBackend)
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	var backend memory.Store
	switch a.cfg.Storage.PersonaBackend {
	case "redis":
		rs, err := memory.NewRedisStore(ctx, memory.RedisOptions{
			Addr:     a.cfg.Storage.RedisAddr,
			Password: a.cfg.Storage.RedisPassword,
			Key:      a.cfg.Storage.RedisKey,
		})
		if err != nil {
			return fmt.Errorf("persona store: %w", err)
		}
		backend = rs
	default:
		backend = memory.NewFileStore(a.cfg.Path("persona.json"))
	}
	a.closers = append(a.closers, backend)
	a.Persona = persona.New(backend, a.logger)

	var log memory.Log
	switch a.cfg.Storage.EventBackend {
	case "sqlite":
		db, err := memory.NewSQLite(a.cfg.Path("memory.db"))
		if err != nil {
			return fmt.Errorf("event log: %w", err)
		}
		log = db
	default:
		log = memory.NewJSONL(a.cfg.Path("memory.jsonl"))
	}
	a.Journal = memory.NewJournal(log)
	a.closers = append(a.closers, a.Journal)
	return nil
}

func (a *App) initSpeech() {
	a.Speaker = tts.NewSpeaker(tts.SpeakerConfig{
		Simulate: a.cfg.Simulate,
		Settings: tts.Settings{
			Language:   a.cfg.Speech.Language,
			Engine:     a.cfg.Speech.Engine,
			PiperVoice: a.cfg.Speech.PiperVoice,
		},
		OpenAIKey:   a.cfg.Speech.OpenAIKey,
		OpenAIVoice: a.cfg.Speech.OpenAIVoice,
	}, a.logger)
	a.closers = append(a.closers, a.Speaker)

	if a.cfg.Simulate {
		a.voice = voice.Simulated{}
		a.sound = audioio.NewActivityDetector(nil, soundWindow, true, a.logger)
		return
	}

	acfg := audioio.DefaultConfig()
	acfg.Backend = audioio.Backend(a.cfg.Voice.AudioBackend)
	acfg.Device = a.cfg.Voice.AudioDevice
	if a.cfg.Voice.SampleRate > 0 {
		acfg.SampleRate = a.cfg.Voice.SampleRate
	}
	rec := audioio.NewRecorder(acfg, a.logger)
	a.sound = audioio.NewActivityDetector(rec, soundWindow, false, a.logger)

	if a.cfg.Voice.DeepgramKey != "" {
		a.voice = voice.NewDeepgram(voice.DeepgramConfig{
			APIKey:   a.cfg.Voice.DeepgramKey,
			Language: a.cfg.Speech.Language,
			Model:    a.cfg.Voice.Model,
		}, rec, a.logger)
	} else {
		a.logger.Warn("no speech recognizer configured; voice commands disabled")
	}
}

func (a *App) initVision() error {
	a.Camera = camera.New(camera.Config{
		Index:    a.cfg.Camera.Index,
		Width:    a.cfg.Camera.Width,
		Height:   a.cfg.Camera.Height,
		Simulate: a.cfg.Simulate,
	}, a.logger)

	a.OCR = vision.NewOCR(vision.OCRConfig{
		Simulate:     a.cfg.Simulate,
		TesseractCmd: a.cfg.Vision.TesseractCmd,
		Language:     tesseractLanguage(a.cfg.Speech.Language),
		GoogleAPIKey: a.cfg.Vision.GoogleAPIKey,
	}, a.logger)

	var analyzer faces.Analyzer
	dcfg := faces.DefaultDetectorConfig()
	dcfg.ModelPath = a.cfg.Vision.FaceModel
	if y, err := faces.NewYuNet(dcfg); err != nil {
		a.logger.Warn("face detection disabled", "error", err)
	} else {
		analyzer = y
		a.closers = append(a.closers, y)
	}
	people, err := faces.NewRegistry(faces.RegistryConfig{
		Dir:       a.cfg.Path("people"),
		CaptureTo: a.cfg.DataDir,
		Threshold: a.cfg.Vision.FaceThreshold,
		MaxPeople: a.cfg.Vision.MaxPeople,
	}, analyzer, a.Camera, a.logger)
	if err != nil {
		return err
	}
	a.People = people

	a.Objects = objects.New(objects.Config{
		Backend:     a.cfg.Vision.ObjectBackend,
		Confidence:  a.cfg.Vision.ObjectConfidence,
		SSDPrototxt: a.cfg.Vision.SSDPrototxt,
		SSDModel:    a.cfg.Vision.SSDModel,
		YOLOModel:   a.cfg.Vision.YOLOModel,
	}, a.logger)
	a.closers = append(a.closers, a.Objects)
	return nil
}

// initSensors builds the stick's sensors. Without GPIO drivers a real
// run has no distance or gesture input; simulation generates both.
func (a *App) initSensors() {
	a.GPS = gps.New(gps.Config{
		Port:     a.cfg.GPS.SerialPort,
		Baudrate: a.cfg.GPS.Baudrate,
		Simulate: a.cfg.Simulate,
	}, a.logger)
	a.Environment = sensors.NewEnvironmentReader(nil, a.cfg.Simulate, a.logger)
	a.Haptics = haptics.New(nil, a.logger)
	if a.cfg.Simulate {
		a.distance = sensors.NewUltrasonic(nil, a.logger)
		a.gesture = sensors.NewGestureReader(nil, a.logger)
	}
}

// tesseractLanguage maps a speech language code to tesseract's.
func tesseractLanguage(lang string) string {
	switch lang {
	case "bn":
		return "ben"
	case "en", "":
		return "eng"
	}
	return lang
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Simulate reports whether adapters run simulated.
func (a *App) Simulate() bool { return a.cfg.Simulate }

// Deps returns the engine's collaborators.
func (a *App) Deps() engine.Deps {
	d := engine.Deps{
		Location:    a.GPS,
		Environment: a.Environment,
		Sound:       a.sound,
		Camera:      a.Camera,
		OCR:         a.OCR,
		Faces:       a.People,
		Objects:     objectDetector{a.Objects},
		Speaker:     a.Speaker,
		Haptics:     a.Haptics,
		Persona:     a.Persona,
		Events:      a.Journal,
	}
	// Absent adapters stay untyped nil; the engine fills in no-ops.
	if a.distance != nil {
		d.Distance = a.distance
	}
	if a.gesture != nil {
		d.Gesture = a.gesture
	}
	if a.voice != nil {
		d.Voice = a.voice
	}
	return d
}

// NewEngine builds a fresh engine over the app's adapters.
func (a *App) NewEngine() *engine.Engine {
	return engine.New(a.Deps(), engine.DefaultConfig(a.cfg.DataDir), a.logger)
}

// Close stops background work and releases adapters.
func (a *App) Close() error {
	if a.wake != nil {
		a.wake.Stop()
	}
	if a.controller != nil {
		a.controller.Stop()
		a.controller.Wait()
	}
	a.cancel()
	for _, w := range a.watchers {
		<-w.Done()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type objectDetector struct{ d objects.Detector }

func (o objectDetector) DetectObjects(ctx context.Context, path string) ([]engine.Object, error) {
	dets, err := o.d.Detect(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Object, len(dets))
	for i, d := range dets {
		out[i] = engine.Object{Label: d.Label, Confidence: d.Confidence, Box: d.Box}
	}
	return out, nil
}
