package tts

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Engine names accepted by Settings.Engine.
const (
	EngineEspeak  = "espeak"
	EnginePyttsx3 = "pyttsx3" // alias for espeak
	EnginePiper   = "piper"
	EngineOpenAI  = "openai"
)

// Settings are the runtime-adjustable speech parameters.
type Settings struct {
	Language   string `json:"language"`
	Engine     string `json:"tts_engine"`
	PiperVoice string `json:"piper_voice"`
}

// SpeakerConfig configures a Speaker.
type SpeakerConfig struct {
	Simulate    bool
	Settings    Settings
	OpenAIKey   string
	OpenAIVoice string
}

// Speaker speaks text aloud. When no engine can synthesize or play, the
// text is logged with a [SIM-TTS] marker instead so nothing is lost.
type Speaker struct {
	simulate    bool
	openAIKey   string
	openAIVoice string
	logger      *slog.Logger
	player      Player

	// build returns the provider chain for s. Overridable in tests.
	build func(s Settings) (Provider, error)

	mu       sync.Mutex
	settings Settings
	active   *lease
}

// lease counts the Speak calls using a provider. A retired lease closes
// its provider when the last user releases it.
type lease struct {
	Provider
	users   int
	retired bool
}

// NewSpeaker creates a speaker. Providers are built on first use.
func NewSpeaker(cfg SpeakerConfig, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Speaker{
		simulate:    cfg.Simulate,
		openAIKey:   cfg.OpenAIKey,
		openAIVoice: cfg.OpenAIVoice,
		logger:      logger.With("component", "tts.speaker"),
		player:      NewCommandPlayer(),
		settings:    normalize(cfg.Settings),
	}
	s.build = s.buildChain
	return s
}

// Speak synthesizes and plays text. It never fails; errors degrade to a
// logged [SIM-TTS] line.
func (s *Speaker) Speak(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.simulate {
		s.logger.Info("[SIM-TTS] " + text)
		return
	}

	p, err := s.acquire()
	if err != nil {
		s.logger.Warn("no speech engine", "error", err)
		s.logger.Info("[SIM-TTS] " + text)
		return
	}
	defer s.release(p)

	audio, err := p.Synthesize(ctx, text)
	if err != nil {
		s.logger.Warn("synthesis failed", "provider", p.Name(), "error", err)
		s.logger.Info("[SIM-TTS] " + text)
		return
	}
	if err := s.player.Play(ctx, audio); err != nil {
		s.logger.Warn("playback failed", "error", err)
		s.logger.Info("[SIM-TTS] " + text)
	}
}

// Settings returns the current speech settings.
func (s *Speaker) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the speech settings. Empty fields keep their
// current value. The provider chain is rebuilt on the next Speak.
func (s *Speaker) SetSettings(next Settings) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next.Language != "" {
		s.settings.Language = next.Language
	}
	if next.Engine != "" {
		s.settings.Engine = next.Engine
	}
	if next.PiperVoice != "" {
		s.settings.PiperVoice = next.PiperVoice
	}
	s.settings = normalize(s.settings)

	if s.active != nil {
		if err := s.retire(s.active); err != nil {
			s.logger.Debug("close provider failed", "error", err)
		}
		s.active = nil
	}
	s.logger.Info("speech settings updated", "language", s.settings.Language, "engine", s.settings.Engine)
	return s.settings
}

// Close releases the active provider. A Speak still in flight keeps it
// open until that call returns.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	err := s.retire(s.active)
	s.active = nil
	return err
}

func (s *Speaker) acquire() (*lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		p, err := s.build(s.settings)
		if err != nil {
			return nil, err
		}
		s.active = &lease{Provider: p}
	}
	s.active.users++
	return s.active, nil
}

func (s *Speaker) release(l *lease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.users--
	if l.retired && l.users == 0 {
		if err := l.Close(); err != nil {
			s.logger.Debug("close provider failed", "error", err)
		}
	}
}

// retire must be called with mu held.
func (s *Speaker) retire(l *lease) error {
	l.retired = true
	if l.users > 0 {
		return nil
	}
	return l.Close()
}

// buildChain orders providers for the settings: Piper first for Bangla or
// when selected, OpenAI first when selected, espeak always last.
func (s *Speaker) buildChain(set Settings) (Provider, error) {
	var providers []Provider

	if set.Engine == EnginePiper || strings.HasPrefix(set.Language, "bn") {
		if p, err := NewPiper(WithVoice(set.PiperVoice), WithLanguage(set.Language), WithLogger(s.logger)); err == nil {
			providers = append(providers, p)
		} else {
			s.logger.Debug("piper unavailable", "error", err)
		}
	}
	if set.Engine == EngineOpenAI {
		if p, err := NewOpenAI(WithAPIKey(s.openAIKey), WithVoice(s.openAIVoice), WithLogger(s.logger)); err == nil {
			providers = append(providers, p)
		} else {
			s.logger.Debug("openai unavailable", "error", err)
		}
	}
	providers = append(providers, NewEspeak(WithLanguage(set.Language), WithLogger(s.logger)))

	return NewChain(s.logger, providers...)
}

func normalize(s Settings) Settings {
	s.Language = strings.ToLower(strings.TrimSpace(s.Language))
	if s.Language == "" {
		s.Language = "en"
	}
	s.Engine = strings.ToLower(strings.TrimSpace(s.Engine))
	switch s.Engine {
	case "", EnginePyttsx3:
		s.Engine = EngineEspeak
	}
	return s
}
