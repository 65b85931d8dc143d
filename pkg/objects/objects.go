// Package objects detects everyday objects in captured images with
// OpenCV's DNN module. Two model families are supported: MobileNet-SSD
// (Caffe, Pascal VOC classes) and YOLOv8 (ONNX, COCO classes). When no
// model is available a Nop detector reports nothing.
package objects

import (
	"context"
	"image"
	"log/slog"
	"os"
)

// Backends accepted by Config.Backend.
const (
	BackendSSD  = "ssd"
	BackendYOLO = "yolo"
	BackendNone = "none"
)

// Detection is one labelled box in pixel coordinates.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"bbox"` // x1, y1, x2, y2
}

func fromRect(label string, conf float64, r image.Rectangle) Detection {
	return Detection{Label: label, Confidence: conf, Box: [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}}
}

// Detector finds objects in an image file.
type Detector interface {
	Detect(ctx context.Context, path string) ([]Detection, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Confidence  float64
	SSDPrototxt string
	SSDModel    string
	YOLOModel   string
}

// New returns the configured detector, or Nop when its model files are
// missing or fail to load.
func New(cfg Config, logger *slog.Logger) Detector {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "objects")

	var (
		d   Detector
		err error
	)
	switch cfg.Backend {
	case BackendYOLO:
		ycfg := DefaultYOLOConfig()
		ycfg.ModelPath = cfg.YOLOModel
		if cfg.Confidence > 0 {
			ycfg.ConfidenceThresh = float32(cfg.Confidence)
		}
		d, err = NewYOLO(ycfg)
	case BackendSSD:
		scfg := DefaultSSDConfig()
		scfg.Prototxt, scfg.Model = cfg.SSDPrototxt, cfg.SSDModel
		if cfg.Confidence > 0 {
			scfg.ConfidenceThresh = cfg.Confidence
		}
		d, err = NewSSD(scfg)
	default:
		return Nop{}
	}
	if err != nil {
		logger.Warn("object detector unavailable", "backend", cfg.Backend, "error", err)
		return Nop{}
	}
	logger.Info("object detector loaded", "backend", cfg.Backend)
	return d
}

// Nop reports no objects.
type Nop struct{}

// Detect returns nothing.
func (Nop) Detect(context.Context, string) ([]Detection, error) { return nil, nil }

// Close is a no-op.
func (Nop) Close() error { return nil }

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
