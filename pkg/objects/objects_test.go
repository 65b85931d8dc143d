package objects

import (
	"context"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-lumen/internal/log"
)

func TestParseSSD(t *testing.T) {
	values := []float32{
		0, 15, 0.9, 0.1, 0.2, 0.5, 0.6, // person
		0, 5, 0.4, 0, 0, 1, 1, // bottle, below threshold
		0, 9, 0.75, 0.5, 0.5, 1.0, 1.0, // chair
		0, 42, 0.99, 0, 0, 1, 1, // out of range class
		0, 1, // truncated record
	}
	got := parseSSD(values, 640, 480, 0.5)
	want := []Detection{
		{Label: "person", Confidence: float64(float32(0.9)), Box: [4]int{64, 96, 320, 288}},
		{Label: "chair", Confidence: 0.75, Box: [4]int{320, 240, 640, 480}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseSSD mismatch (-want +got):\n%s", diff)
	}
}

func TestYOLOCandidates(t *testing.T) {
	d := &YOLO{config: DefaultYOLOConfig()}
	const n = 2
	channels := 4 + len(COCOClasses)
	values := make([]float32, channels*n)

	// Proposal 0: a cup (class 41) centred at (320,320), 100x200.
	values[0*n+0], values[1*n+0], values[2*n+0], values[3*n+0] = 320, 320, 100, 200
	values[(4+41)*n+0] = 0.8
	// Proposal 1: weak dog.
	values[(4+16)*n+1] = 0.3

	c := d.candidates(values, channels, n, 1280, 640)
	if len(c.boxes) != 1 {
		t.Fatalf("got %d candidates, want 1", len(c.boxes))
	}
	if COCOClasses[c.classes[0]] != "cup" || c.scores[0] != 0.8 {
		t.Errorf("candidate = %s %v", COCOClasses[c.classes[0]], c.scores[0])
	}
	if want := image.Rect(540, 220, 740, 420); c.boxes[0] != want {
		t.Errorf("box = %v, want %v", c.boxes[0], want)
	}

	if got := d.candidates(values[:10], channels, n, 1, 1); len(got.boxes) != 0 {
		t.Error("short tensor should yield nothing")
	}
}

func TestNewFallsBackToNop(t *testing.T) {
	for _, cfg := range []Config{
		{Backend: BackendNone},
		{Backend: BackendSSD, SSDPrototxt: "missing.prototxt", SSDModel: "missing.caffemodel"},
		{Backend: BackendYOLO, YOLOModel: "missing.onnx"},
	} {
		d := New(cfg, log.Discard())
		if _, ok := d.(Nop); !ok {
			t.Errorf("New(%+v) = %T, want Nop", cfg, d)
		}
		got, err := d.Detect(context.Background(), "x.jpg")
		if got != nil || err != nil {
			t.Errorf("Nop.Detect = %v, %v", got, err)
		}
	}
}

func TestIsPerson(t *testing.T) {
	if !IsPerson("person") || IsPerson("chair") {
		t.Error("IsPerson")
	}
}
