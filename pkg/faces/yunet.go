package faces

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// DetectorConfig configures the YuNet face detector.
type DetectorConfig struct {
	ModelPath        string
	ConfidenceThresh float64
	InputWidth       int
	InputHeight      int
}

// DefaultDetectorConfig returns defaults for the 2023 YuNet release.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ModelPath:        "models/face_detection_yunet_2023mar.onnx",
		ConfidenceThresh: 0.6,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// YuNet detects faces with OpenCV's FaceDetectorYN and embeds each one.
type YuNet struct {
	detector gocv.FaceDetectorYN
	config   DetectorConfig
	mu       sync.Mutex
}

// NewYuNet loads the ONNX model. A missing file is an error.
func NewYuNet(cfg DetectorConfig) (*YuNet, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("faces: model file not found: %s", cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{detector: detector, config: cfg}, nil
}

// Detect returns face boxes in pixel coordinates, clipped to the image.
func (y *YuNet) Detect(img gocv.Mat) []image.Rectangle {
	y.mu.Lock()
	defer y.mu.Unlock()

	y.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	y.detector.Detect(img, &faces)

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	var boxes []image.Rectangle
	for r := 0; r < faces.Rows(); r++ {
		// Columns 0-3 are x, y, w, h; 4-13 landmarks; 14 score.
		x := int(faces.GetFloatAt(r, 0))
		yy := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		box := image.Rect(x, yy, x+w, yy+h).Intersect(bounds)
		if !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

// Embeddings implements Analyzer.
func (y *YuNet) Embeddings(ctx context.Context, path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("faces: decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrImageNotFound
	}

	var out [][]float32
	for _, box := range y.Detect(img) {
		face := img.Region(box)
		out = append(out, Embed(face))
		face.Close()
	}
	return out, nil
}

// Close releases the detector.
func (y *YuNet) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.detector.Close()
	return nil
}

// Embed converts a face crop to a unit-length 32x32 grayscale vector.
func Embed(face gocv.Mat) []float32 {
	gray := gocv.NewMat()
	defer gray.Close()
	if face.Channels() == 1 {
		face.CopyTo(&gray)
	} else {
		gocv.CvtColor(face, &gray, gocv.ColorBGRToGray)
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(gray, &small, image.Pt(EmbeddingSide, EmbeddingSide), 0, 0, gocv.InterpolationLinear)

	vec := make([]float32, 0, EmbeddingSize)
	for r := 0; r < EmbeddingSide; r++ {
		for c := 0; c < EmbeddingSide; c++ {
			vec = append(vec, float32(small.GetUCharAt(r, c)))
		}
	}
	return Normalize(vec)
}

var _ Analyzer = (*YuNet)(nil)
