package objects

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// SSDConfig configures the MobileNet-SSD detector.
type SSDConfig struct {
	Prototxt         string
	Model            string
	ConfidenceThresh float64
}

// DefaultSSDConfig returns the usual MobileNet-SSD deploy files.
func DefaultSSDConfig() SSDConfig {
	return SSDConfig{
		Prototxt:         "models/MobileNetSSD_deploy.prototxt",
		Model:            "models/MobileNetSSD_deploy.caffemodel",
		ConfidenceThresh: 0.5,
	}
}

// SSD runs a Caffe MobileNet-SSD network at 300x300.
type SSD struct {
	net    gocv.Net
	config SSDConfig
	mu     sync.Mutex
}

// NewSSD loads the Caffe network. Both files must exist.
func NewSSD(cfg SSDConfig) (*SSD, error) {
	if !fileExists(cfg.Prototxt) || !fileExists(cfg.Model) {
		return nil, fmt.Errorf("objects: model files not found: %s, %s", cfg.Prototxt, cfg.Model)
	}
	net := gocv.ReadNetFromCaffe(cfg.Prototxt, cfg.Model)
	if net.Empty() {
		return nil, fmt.Errorf("objects: failed to load SSD model from %s", cfg.Model)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &SSD{net: net, config: cfg}, nil
}

// Detect runs the network on the image at path.
func (d *SSD) Detect(ctx context.Context, path string) ([]Detection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("objects: decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("objects: empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 0.007843, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	defer blob.Close()
	d.net.SetInput(blob, "")

	out := d.net.Forward("")
	defer out.Close()

	values, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("objects: read output: %w", err)
	}
	return parseSSD(values, img.Cols(), img.Rows(), d.config.ConfidenceThresh), nil
}

// Close releases the network.
func (d *SSD) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// parseSSD decodes the [1,1,N,7] output: image id, class, confidence,
// then x1, y1, x2, y2 as fractions of the image size.
func parseSSD(values []float32, w, h int, thresh float64) []Detection {
	var out []Detection
	for i := 0; i+7 <= len(values); i += 7 {
		conf := float64(values[i+2])
		if conf < thresh {
			continue
		}
		idx := int(values[i+1])
		if idx < 0 || idx >= len(VOCClasses) {
			continue
		}
		box := image.Rect(
			int(values[i+3]*float32(w)),
			int(values[i+4]*float32(h)),
			int(values[i+5]*float32(w)),
			int(values[i+6]*float32(h)),
		)
		out = append(out, fromRect(VOCClasses[idx], conf, box))
	}
	return out
}

var _ Detector = (*SSD)(nil)
