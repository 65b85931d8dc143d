package web

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-lumen/pkg/engine"
	"github.com/teslashibe/go-lumen/pkg/faces"
	"github.com/teslashibe/go-lumen/pkg/memory"
	"github.com/teslashibe/go-lumen/pkg/tts"
	"github.com/teslashibe/go-lumen/pkg/vision"
)

// DefaultSpeech is spoken by /api/speak when no text is given.
const DefaultSpeech = "Hello from Lumen"

// bind decodes an optional JSON body into v. An empty body leaves v as is.
func bind(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return json.Unmarshal(c.Body(), v)
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"ok": false, "error": msg})
}

// seconds converts an optional float number of seconds.
func seconds(v *float64, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	return time.Duration(*v * float64(time.Second))
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.lumen.Status(c.UserContext()))
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req struct {
		Text *string `json:"text"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	text := DefaultSpeech
	if req.Text != nil {
		text = *req.Text
	}
	s.lumen.Speak(c.UserContext(), text)
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleWakeStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"enabled": s.lumen.WakeEnabled()})
}

func (s *Server) handleWakeSet(c *fiber.Ctx) error {
	var req struct {
		Enabled  *bool    `json:"enabled"`
		Interval *float64 `json:"interval"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	enable := req.Enabled == nil || *req.Enabled
	on, err := s.lumen.SetWake(enable, seconds(req.Interval, 600*time.Millisecond))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"ok": true, "enabled": on})
}

func (s *Server) handleLanguageGet(c *fiber.Ctx) error {
	return c.JSON(s.lumen.SpeechSettings())
}

func (s *Server) handleLanguageSet(c *fiber.Ctx) error {
	var req tts.Settings
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	got := s.lumen.SetSpeechSettings(req)
	return c.JSON(fiber.Map{
		"ok":          true,
		"language":    got.Language,
		"tts_engine":  got.Engine,
		"piper_voice": got.PiperVoice,
	})
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	var req struct {
		Path string `json:"path"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	if req.Path == "" {
		req.Path = filepath.Join(s.cfg.DataDir, "capture.jpg")
	}
	saved, err := s.lumen.Capture(c.UserContext(), req.Path)
	if err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"ok": true, "path": saved})
}

func (s *Server) handleReadText(c *fiber.Ctx) error {
	var req struct {
		Path string `json:"path"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	if req.Path == "" {
		req.Path = filepath.Join(s.cfg.DataDir, "read.jpg")
	}
	text, err := s.lumen.ReadText(c.UserContext(), req.Path)
	switch {
	case errors.Is(err, vision.ErrImageNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case err != nil:
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"ok": true, "text": text})
}

func (s *Server) handleGPS(c *fiber.Ctx) error {
	return c.JSON(s.lumen.Location(c.UserContext()))
}

func (s *Server) handleGesture(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"gesture": s.lumen.Gesture(c.UserContext())})
}

func (s *Server) handleEnvironment(c *fiber.Ctx) error {
	return c.JSON(s.lumen.ReadEnvironment(c.UserContext()))
}

func (s *Server) handleAssistStart(c *fiber.Ctx) error {
	var req struct {
		Iterations *int     `json:"iterations"`
		Interval   *float64 `json:"interval"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	iterations := 0
	if req.Iterations != nil {
		iterations = *req.Iterations
	}
	if err := s.lumen.StartAssist(iterations, seconds(req.Interval, time.Second)); err != nil {
		return s.startFailed(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) startFailed(c *fiber.Ctx, err error) error {
	if errors.Is(err, engine.ErrAlreadyRunning) {
		return fail(c, fiber.StatusBadRequest, "Engine already running")
	}
	return fail(c, fiber.StatusInternalServerError, err.Error())
}

func (s *Server) handleAssistStop(c *fiber.Ctx) error {
	s.lumen.StopAssist()
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleAutonomy(c *fiber.Ctx) error {
	var req struct {
		Enabled  *bool    `json:"enabled"`
		Interval *float64 `json:"interval"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	if req.Enabled != nil && !*req.Enabled {
		s.lumen.StopAssist()
		return c.JSON(fiber.Map{"ok": true, "running": false})
	}
	if err := s.lumen.StartAssist(0, seconds(req.Interval, time.Second)); err != nil {
		return s.startFailed(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "running": true})
}

func (s *Server) handlePeopleList(c *fiber.Ctx) error {
	names, err := s.lumen.ListPeople()
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{"people": names})
}

func (s *Server) handlePeopleEnroll(c *fiber.Ctx) error {
	var req struct {
		Name      string `json:"name"`
		ImagePath string `json:"image_path"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	if req.Name == "" {
		return fail(c, fiber.StatusBadRequest, "Missing name")
	}
	if err := s.lumen.Enroll(c.UserContext(), req.Name, req.ImagePath); err != nil {
		return faceError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handlePeopleForget(c *fiber.Ctx) error {
	if err := s.lumen.Forget(c.Params("name")); err != nil {
		return faceError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleRecognize(c *fiber.Ctx) error {
	var req struct {
		ImagePath string `json:"image_path"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	names, err := s.lumen.Recognize(c.UserContext(), req.ImagePath)
	if err != nil {
		return faceError(c, err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{"recognized": names})
}

// faceError maps registry errors to the messages the app shows.
func faceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, faces.ErrCapacity):
		return fail(c, fiber.StatusConflict, "Capacity reached (10 people). Forget someone first.")
	case errors.Is(err, faces.ErrImageNotFound):
		return fail(c, fiber.StatusNotFound, "Image not found")
	case errors.Is(err, faces.ErrNoFace):
		return fail(c, fiber.StatusUnprocessableEntity, "No face detected")
	case errors.Is(err, faces.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, faces.ErrInvalidName):
		return fail(c, fiber.StatusBadRequest, "Invalid name")
	case errors.Is(err, faces.ErrNoDetector):
		return fail(c, fiber.StatusServiceUnavailable, "Face detection unavailable")
	}
	return fail(c, fiber.StatusInternalServerError, err.Error())
}

func (s *Server) handlePersonaGet(c *fiber.Ctx) error {
	return c.JSON(s.lumen.PersonaState())
}

func (s *Server) handlePersonaEvent(c *fiber.Ctx) error {
	var req struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	if err := bind(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	if req.Event == "" {
		return fail(c, fiber.StatusBadRequest, "Missing event")
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
	p, err := s.lumen.PersonaEvent(req.Event, req.Payload)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"ok": true, "persona": p})
}

func (s *Server) handleMemory(c *fiber.Ctx) error {
	events, err := s.lumen.Events(c.QueryInt("limit", 50))
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	if events == nil {
		events = []memory.Event{}
	}
	return c.JSON(fiber.Map{"events": events})
}
