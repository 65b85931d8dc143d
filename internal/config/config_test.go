package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GPS.Baudrate != 9600 {
		t.Errorf("Baudrate = %d, want 9600", cfg.GPS.Baudrate)
	}
	if cfg.Assist.Iterations != 30 || cfg.Assist.Interval != time.Second {
		t.Errorf("Assist = %+v", cfg.Assist)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumen.yaml")
	data := []byte("simulate: false\nspeech:\n  language: bn\n  engine: piper\ncamera:\n  index: 2\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LANGUAGE", "")
	t.Setenv("TTS_ENGINE", "")
	t.Setenv("SIMULATION", "1")
	t.Setenv("CAMERA_INDEX", "4")
	t.Setenv("GPS_SERIAL_PORT", "/dev/serial0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Simulate {
		t.Error("SIMULATION=1 should enable simulation")
	}
	if cfg.Speech.Language != "bn" || cfg.Speech.Engine != "piper" {
		t.Errorf("Speech = %+v", cfg.Speech)
	}
	if cfg.Camera.Index != 4 {
		t.Errorf("Camera.Index = %d, want env override 4", cfg.Camera.Index)
	}
	if cfg.GPS.SerialPort != "/dev/serial0" {
		t.Errorf("GPS.SerialPort = %q", cfg.GPS.SerialPort)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumen.yaml")
	if err := os.WriteFile(path, []byte("speech: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown engine", func(c *Config) { c.Speech.Engine = "festival" }, "Speech.Engine"},
		{"openai without key", func(c *Config) { c.Speech.Engine = "openai" }, "Speech.OpenAIKey"},
		{"bad threshold", func(c *Config) { c.Vision.FaceThreshold = 0 }, "Vision.FaceThreshold"},
		{"no people", func(c *Config) { c.Vision.MaxPeople = 0 }, "Vision.MaxPeople"},
		{"bad persona backend", func(c *Config) { c.Storage.PersonaBackend = "s3" }, "Storage.PersonaBackend"},
		{"bad event backend", func(c *Config) { c.Storage.EventBackend = "kafka" }, "Storage.EventBackend"},
		{"bad audio backend", func(c *Config) { c.Voice.AudioBackend = "mock" }, "Voice.AudioBackend"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "DataDir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("Validate() = %v, want *Error", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestPyttsx3IsAcceptedAlias(t *testing.T) {
	cfg := Default()
	cfg.Speech.Engine = "pyttsx3"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lumen.yaml")
	if err := os.WriteFile(path, []byte("speech:\n  language: en\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got := make(chan *Config, 1)
	w, err := NewWatcher(path, nil, func(c *Config) {
		select {
		case got <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer func() {
		cancel()
		<-w.Done()
	}()

	if err := os.WriteFile(path, []byte("speech:\n  language: bn\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Speech.Language != "bn" {
			t.Errorf("Language = %q, want bn", c.Speech.Language)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}
