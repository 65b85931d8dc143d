package objects

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YOLOConfig holds YOLOv8 detector configuration.
type YOLOConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

// DefaultYOLOConfig returns defaults for YOLOv8n.
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// YOLO runs a YOLOv8 ONNX model over the 80 COCO classes.
type YOLO struct {
	net       gocv.Net
	config    YOLOConfig
	inputSize image.Point
	mu        sync.Mutex
}

// NewYOLO loads the ONNX model.
func NewYOLO(cfg YOLOConfig) (*YOLO, error) {
	if !fileExists(cfg.ModelPath) {
		return nil, fmt.Errorf("objects: model file not found: %s", cfg.ModelPath)
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("objects: failed to load YOLO model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLO{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect runs the model on the image at path.
func (d *YOLO) Detect(ctx context.Context, path string) ([]Detection, error) {
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

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// Output shape is [1, 84, N]: 4 box values then 80 class scores.
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("objects: unexpected YOLO output shape %v", dims)
	}
	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("objects: read output: %w", err)
	}

	cands := d.candidates(values, dims[1], dims[2], float32(img.Cols()), float32(img.Rows()))
	if len(cands.boxes) == 0 {
		return nil, nil
	}

	var out []Detection
	for _, idx := range gocv.NMSBoxes(cands.boxes, cands.scores, d.config.ConfidenceThresh, d.config.NMSThresh) {
		out = append(out, fromRect(COCOClasses[cands.classes[idx]], float64(cands.scores[idx]), cands.boxes[idx]))
	}
	return out, nil
}

type candidates struct {
	boxes   []image.Rectangle
	scores  []float32
	classes []int
}

// candidates reads the channel-major YOLOv8 tensor: values[c*n+i] is
// channel c of proposal i.
func (d *YOLO) candidates(values []float32, channels, n int, imgW, imgH float32) candidates {
	var c candidates
	if channels < 5 || len(values) < channels*n {
		return c
	}
	sx := imgW / float32(d.config.InputWidth)
	sy := imgH / float32(d.config.InputHeight)

	for i := 0; i < n; i++ {
		best, bestClass := float32(0), 0
		for ch := 4; ch < channels && ch-4 < len(COCOClasses); ch++ {
			if s := values[ch*n+i]; s > best {
				best, bestClass = s, ch-4
			}
		}
		if best < d.config.ConfidenceThresh {
			continue
		}

		cx, cy := values[i], values[n+i]
		w, h := values[2*n+i], values[3*n+i]
		c.boxes = append(c.boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		c.scores = append(c.scores, best)
		c.classes = append(c.classes, bestClass)
	}
	return c
}

// Close releases the network.
func (d *YOLO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

var _ Detector = (*YOLO)(nil)
