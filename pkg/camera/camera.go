package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// ErrCaptureFailed is returned when the device yields no frame.
var ErrCaptureFailed = errors.New("camera: failed to capture image from camera")

// frameSource is the subset of gocv.VideoCapture used here.
type frameSource interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Camera grabs single frames. Each capture opens and releases the device
// so other processes can use it between captures.
type Camera struct {
	cfg    Config
	logger *slog.Logger
	open   func(cfg Config) (frameSource, error)

	mu sync.Mutex
}

// New creates a camera. Nothing is opened until Capture.
func New(cfg Config, logger *slog.Logger) *Camera {
	if logger == nil {
		logger = slog.Default()
	}
	return &Camera{
		cfg:    cfg,
		logger: logger.With("component", "camera"),
		open:   openDevice,
	}
}

// Config returns the camera configuration.
func (c *Camera) Config() Config { return c.cfg }

// Capture writes one frame to path and returns the path. In simulation it
// writes a labelled black placeholder instead.
func (c *Camera) Capture(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("camera: create dir: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Simulate {
		if err := WritePlaceholder(path); err != nil {
			return "", err
		}
		c.logger.Debug("wrote placeholder frame", "path", path)
		return path, nil
	}

	src, err := c.open(c.cfg)
	if err != nil {
		return "", fmt.Errorf("camera: open device %d: %w", c.cfg.Index, err)
	}
	defer src.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	if !src.Read(&frame) || frame.Empty() {
		return "", ErrCaptureFailed
	}
	if err := writeMat(path, frame); err != nil {
		return "", err
	}

	c.logger.Debug("captured frame", "path", path, "width", frame.Cols(), "height", frame.Rows())
	return path, nil
}

// WritePlaceholder writes a 640x480 black image with a caption to path.
func WritePlaceholder(path string) error {
	img := gocv.NewMatWithSize(PlaceholderHeight, PlaceholderWidth, gocv.MatTypeCV8UC3)
	defer img.Close()

	gocv.PutText(&img, PlaceholderText, image.Pt(50, 240), gocv.FontHersheySimplex, 1, color.RGBA{R: 255, G: 255, B: 255, A: 0}, 2)
	return writeMat(path, img)
}

func writeMat(path string, m gocv.Mat) error {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".jpg"
	}
	buf, err := gocv.IMEncode(gocv.FileExt(ext), m)
	if err != nil {
		return fmt.Errorf("camera: encode %s: %w", ext, err)
	}
	defer buf.Close()

	if err := os.WriteFile(path, buf.GetBytes(), 0o644); err != nil {
		return fmt.Errorf("camera: write %s: %w", path, err)
	}
	return nil
}

func openDevice(cfg Config) (frameSource, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Index)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, ErrCaptureFailed
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	return vc, nil
}
