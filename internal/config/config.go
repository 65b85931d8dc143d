// Package config loads lumen's runtime configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then process environment. Commands apply flag overrides last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lpernett/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where commands look for a config file when none is given.
const DefaultPath = "lumen.yaml"

// Config holds every tunable the adapters need. It is data only and is
// passed explicitly to constructors.
type Config struct {
	// Simulate replaces every hardware adapter with its simulated variant.
	Simulate bool   `yaml:"simulate"`
	DataDir  string `yaml:"data_dir"`

	Log     LogConfig     `yaml:"log"`
	Speech  SpeechConfig  `yaml:"speech"`
	Voice   VoiceConfig   `yaml:"voice"`
	Vision  VisionConfig  `yaml:"vision"`
	Camera  CameraConfig  `yaml:"camera"`
	GPS     GPSConfig     `yaml:"gps"`
	Storage StorageConfig `yaml:"storage"`
	Assist  AssistConfig  `yaml:"assist"`
	Server  ServerConfig  `yaml:"server"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SpeechConfig controls text-to-speech.
type SpeechConfig struct {
	Language    string `yaml:"language"`
	Engine      string `yaml:"engine"` // espeak, piper, openai
	PiperVoice  string `yaml:"piper_voice"`
	OpenAIKey   string `yaml:"-"`
	OpenAIVoice string `yaml:"openai_voice"`
}

// VoiceConfig controls speech recognition and wake-word listening.
type VoiceConfig struct {
	DeepgramKey  string        `yaml:"-"`
	Model        string        `yaml:"model"`
	AudioBackend string        `yaml:"audio_backend"`
	AudioDevice  string        `yaml:"audio_device"`
	SampleRate   int           `yaml:"sample_rate"`
	WakeEnabled  bool          `yaml:"wake_enabled"`
	WakeInterval time.Duration `yaml:"wake_interval"`
}

// VisionConfig controls OCR, face recognition and object detection.
type VisionConfig struct {
	TesseractCmd     string  `yaml:"tesseract_cmd"`
	GoogleAPIKey     string  `yaml:"-"`
	FaceModel        string  `yaml:"face_model"`
	FaceThreshold    float64 `yaml:"face_threshold"`
	MaxPeople        int     `yaml:"max_people"`
	ObjectBackend    string  `yaml:"object_backend"` // yolo, ssd
	YOLOModel        string  `yaml:"yolo_model"`
	SSDPrototxt      string  `yaml:"ssd_prototxt"`
	SSDModel         string  `yaml:"ssd_model"`
	ObjectConfidence float64 `yaml:"object_confidence"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Index  int `yaml:"index"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// GPSConfig selects the NMEA serial port.
type GPSConfig struct {
	SerialPort string `yaml:"serial_port"`
	Baudrate   int    `yaml:"baudrate"`
}

// StorageConfig selects persona and event-log backends.
type StorageConfig struct {
	PersonaBackend string `yaml:"persona_backend"` // file, redis
	EventBackend   string `yaml:"event_backend"`   // jsonl, sqlite
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"-"`
	RedisKey       string `yaml:"redis_key"`
}

// AssistConfig holds engine loop defaults.
type AssistConfig struct {
	Iterations int           `yaml:"iterations"`
	Interval   time.Duration `yaml:"interval"`
}

// ServerConfig holds the control API listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Log:     LogConfig{Level: "info"},
		Speech: SpeechConfig{
			Language:    "en",
			Engine:      "espeak",
			OpenAIVoice: "shimmer",
		},
		Voice: VoiceConfig{
			Model:        "nova-2",
			AudioBackend: "auto",
			SampleRate:   16000,
			WakeInterval: 600 * time.Millisecond,
		},
		Vision: VisionConfig{
			TesseractCmd:     "tesseract",
			FaceModel:        "models/face_detection_yunet_2023mar.onnx",
			FaceThreshold:    0.8,
			MaxPeople:        10,
			ObjectBackend:    "ssd",
			YOLOModel:        "models/yolov8n.onnx",
			SSDPrototxt:      "models/MobileNetSSD_deploy.prototxt",
			SSDModel:         "models/MobileNetSSD_deploy.caffemodel",
			ObjectConfidence: 0.5,
		},
		Camera: CameraConfig{Width: 640, Height: 480},
		GPS:    GPSConfig{Baudrate: 9600},
		Storage: StorageConfig{
			PersonaBackend: "file",
			EventBackend:   "jsonl",
			RedisAddr:      "localhost:6379",
			RedisKey:       "lumen:persona",
		},
		Assist: AssistConfig{Iterations: 30, Interval: time.Second},
		Server: ServerConfig{Addr: ":8000"},
	}
}

// Load builds a Config from defaults, the YAML file at path (if present),
// a .env file in the working directory (if present) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Missing .env is normal outside development.
	_ = godotenv.Load()

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto c.
func (c *Config) applyEnv() {
	if v, ok := envBool("SIMULATION"); ok {
		c.Simulate = v
	}
	setString(&c.DataDir, "LUMEN_DATA_DIR")
	setString(&c.Log.Level, "LOG_LEVEL")

	setString(&c.Speech.Language, "LANGUAGE")
	setString(&c.Speech.Engine, "TTS_ENGINE")
	setString(&c.Speech.PiperVoice, "PIPER_VOICE")
	setString(&c.Speech.OpenAIKey, "OPENAI_API_KEY")

	setString(&c.Voice.DeepgramKey, "DEEPGRAM_API_KEY")
	setString(&c.Voice.AudioDevice, "AUDIO_DEVICE")
	if v, ok := envBool("WAKE_ENABLED"); ok {
		c.Voice.WakeEnabled = v
	}

	setString(&c.Vision.TesseractCmd, "TESSERACT_CMD")
	setString(&c.Vision.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&c.Vision.SSDPrototxt, "LUMEN_SSD_PROTOTXT")
	setString(&c.Vision.SSDModel, "LUMEN_SSD_MODEL")
	setString(&c.Vision.YOLOModel, "LUMEN_YOLO_MODEL")
	setString(&c.Vision.FaceModel, "LUMEN_FACE_MODEL")

	setInt(&c.Camera.Index, "CAMERA_INDEX")

	setString(&c.GPS.SerialPort, "GPS_SERIAL_PORT")
	setInt(&c.GPS.Baudrate, "GPS_BAUDRATE")

	setString(&c.Storage.PersonaBackend, "PERSONA_BACKEND")
	setString(&c.Storage.EventBackend, "EVENT_BACKEND")
	setString(&c.Storage.RedisAddr, "REDIS_HOST")
	setString(&c.Storage.RedisPassword, "REDIS_PASSWORD")

	setString(&c.Server.Addr, "LUMEN_ADDR")
}

// Validate checks values that would otherwise fail deep inside an adapter.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return &Error{Field: "DataDir", Message: "data directory must not be empty"}
	}
	switch c.Speech.Engine {
	case "espeak", "pyttsx3", "piper", "openai":
	default:
		return &Error{Field: "Speech.Engine", Message: fmt.Sprintf("unknown TTS engine %q", c.Speech.Engine)}
	}
	if c.Speech.Engine == "openai" && c.Speech.OpenAIKey == "" {
		return &Error{Field: "Speech.OpenAIKey", Message: "OPENAI_API_KEY is required for the openai TTS engine"}
	}
	switch c.Voice.AudioBackend {
	case "", "auto", "command", "tone":
	default:
		return &Error{Field: "Voice.AudioBackend", Message: fmt.Sprintf("unknown audio backend %q", c.Voice.AudioBackend)}
	}
	switch c.Vision.ObjectBackend {
	case "yolo", "ssd", "none":
	default:
		return &Error{Field: "Vision.ObjectBackend", Message: fmt.Sprintf("unknown object backend %q", c.Vision.ObjectBackend)}
	}
	if c.Vision.FaceThreshold <= 0 || c.Vision.FaceThreshold > 1 {
		return &Error{Field: "Vision.FaceThreshold", Message: "face threshold must be in (0, 1]"}
	}
	if c.Vision.MaxPeople < 1 {
		return &Error{Field: "Vision.MaxPeople", Message: "max people must be at least 1"}
	}
	switch c.Storage.PersonaBackend {
	case "file", "redis":
	default:
		return &Error{Field: "Storage.PersonaBackend", Message: fmt.Sprintf("unknown persona backend %q", c.Storage.PersonaBackend)}
	}
	switch c.Storage.EventBackend {
	case "jsonl", "sqlite":
	default:
		return &Error{Field: "Storage.EventBackend", Message: fmt.Sprintf("unknown event backend %q", c.Storage.EventBackend)}
	}
	if c.GPS.Baudrate <= 0 {
		return &Error{Field: "GPS.Baudrate", Message: "baudrate must be positive"}
	}
	if c.Assist.Interval < 0 {
		return &Error{Field: "Assist.Interval", Message: "interval must not be negative"}
	}
	return nil
}

// Path joins name onto the data directory.
func (c *Config) Path(name ...string) string {
	return filepath.Join(append([]string{c.DataDir}, name...)...)
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config: " + e.Message
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
