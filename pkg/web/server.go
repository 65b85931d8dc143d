// Package web serves lumen's control API and live event feed.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-lumen/pkg/gps"
	"github.com/teslashibe/go-lumen/pkg/hub"
	"github.com/teslashibe/go-lumen/pkg/lumen"
	"github.com/teslashibe/go-lumen/pkg/memory"
	"github.com/teslashibe/go-lumen/pkg/persona"
	"github.com/teslashibe/go-lumen/pkg/sensors"
	"github.com/teslashibe/go-lumen/pkg/tts"
)

// Assistant is what the API drives. *lumen.App implements it.
type Assistant interface {
	Status(ctx context.Context) lumen.Status
	Speak(ctx context.Context, text string)
	Capture(ctx context.Context, path string) (string, error)
	ReadText(ctx context.Context, path string) (string, error)
	Location(ctx context.Context) gps.Location
	Gesture(ctx context.Context) sensors.Gesture
	ReadEnvironment(ctx context.Context) sensors.Environment

	StartAssist(iterations int, interval time.Duration) error
	StopAssist() bool

	WakeEnabled() bool
	SetWake(enabled bool, interval time.Duration) (bool, error)
	SpeechSettings() tts.Settings
	SetSpeechSettings(s tts.Settings) tts.Settings

	ListPeople() ([]string, error)
	Enroll(ctx context.Context, name, path string) error
	Forget(name string) error
	Recognize(ctx context.Context, path string) ([]string, error)

	PersonaState() persona.State
	PersonaEvent(event string, payload map[string]any) (persona.State, error)
	Events(limit int) ([]memory.Event, error)
	Subscribe(fn func(memory.Event))
}

var _ Assistant = (*lumen.App)(nil)

// Config configures the server.
type Config struct {
	Addr      string
	DataDir   string // default location for captures
	StaticDir string // optional web UI
	// AllowOrigins is passed to the CORS middleware.
	AllowOrigins string
}

// Server is the control API.
type Server struct {
	app    *fiber.App
	cfg    Config
	lumen  Assistant
	events *hub.Hub
	logger *slog.Logger
}

// NewServer builds the routes. Nothing listens until Start or Serve.
func NewServer(a Assistant, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = "*"
	}
	s := &Server{
		cfg:    cfg,
		lumen:  a,
		events: hub.New("events", logger),
		logger: logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Lumen Control API",
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowOrigins}))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/speak", s.handleSpeak)
	api.Get("/wake", s.handleWakeStatus)
	api.Post("/wake", s.handleWakeSet)
	api.Get("/language", s.handleLanguageGet)
	api.Post("/language", s.handleLanguageSet)
	api.Post("/capture", s.handleCapture)
	api.Post("/read-text", s.handleReadText)
	api.Get("/gps", s.handleGPS)
	api.Get("/gesture", s.handleGesture)
	api.Get("/environment", s.handleEnvironment)
	api.Post("/assist/start", s.handleAssistStart)
	api.Post("/assist/stop", s.handleAssistStop)
	api.Post("/autonomy", s.handleAutonomy)
	api.Get("/people", s.handlePeopleList)
	api.Post("/people/enroll", s.handlePeopleEnroll)
	api.Delete("/people/:name", s.handlePeopleForget)
	api.Post("/recognize", s.handleRecognize)
	api.Get("/persona", s.handlePersonaGet)
	api.Post("/persona/event", s.handlePersonaEvent)
	api.Get("/memory", s.handleMemory)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.events.Serve))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	a.Subscribe(func(e memory.Event) {
		if err := s.events.BroadcastJSON(e); err != nil {
			s.logger.Warn("event broadcast failed", "kind", e.Kind, "error", err)
		}
	})

	s.app = app
	return s
}

// Start listens on the configured address until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// and waits for the event hub to stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	go s.events.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()
	s.logger.Info("control API listening", "addr", ln.Addr().String())

	var err error
	select {
	case <-ctx.Done():
		// Closing the hub first ends websocket handlers so shutdown
		// does not wait on them.
		stopHub()
		<-s.events.Done()
		err = s.app.ShutdownWithTimeout(5 * time.Second)
		<-errCh
	case err = <-errCh:
		stopHub()
		<-s.events.Done()
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App { return s.app }
