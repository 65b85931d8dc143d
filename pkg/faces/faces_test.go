package faces

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-lumen/internal/log"
)

// vec returns a unit embedding with a single hot index.
func vec(i int) []float32 {
	v := make([]float32, EmbeddingSize)
	v[i] = 1
	return v
}

type fakeAnalyzer struct {
	faces [][]float32
	err   error
	paths []string
}

func (f *fakeAnalyzer) Embeddings(ctx context.Context, path string) ([][]float32, error) {
	f.paths = append(f.paths, path)
	return f.faces, f.err
}

type fakeCamera struct{ shots int }

func (c *fakeCamera) Capture(ctx context.Context, path string) (string, error) {
	c.shots++
	return path, os.WriteFile(path, []byte("img"), 0o644)
}

func newRegistry(t *testing.T, a Analyzer, max int) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	img := filepath.Join(root, "face.jpg")
	if err := os.WriteFile(img, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := NewRegistry(RegistryConfig{Dir: filepath.Join(root, "people"), MaxPeople: max}, a, &fakeCamera{}, log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r, img
}

func TestCosine(t *testing.T) {
	if got := Cosine(vec(0), vec(0)); math.Abs(got-1) > 1e-5 {
		t.Errorf("identical = %v", got)
	}
	if got := Cosine(vec(0), vec(1)); got != 0 {
		t.Errorf("orthogonal = %v", got)
	}
	if got := Cosine([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched = %v", got)
	}
	n := Normalize([]float32{3, 4})
	if math.Abs(float64(n[0])-0.6) > 1e-5 || math.Abs(float64(n[1])-0.8) > 1e-5 {
		t.Errorf("Normalize = %v", n)
	}
}

func TestEnrollListRecognizeForget(t *testing.T) {
	a := &fakeAnalyzer{faces: [][]float32{vec(1)}}
	r, img := newRegistry(t, a, 0)
	ctx := context.Background()

	if err := r.Enroll(ctx, "Alice", img); err != nil {
		t.Fatal(err)
	}
	a.faces = [][]float32{vec(2)}
	if err := r.Enroll(ctx, " Bob ", img); err != nil {
		t.Fatal(err)
	}

	names, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Alice", "Bob"}, names); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	a.faces = [][]float32{vec(2), vec(3), vec(1)}
	got, err := r.Recognize(ctx, img)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Bob", Unknown, "Alice"}, got); diff != "" {
		t.Errorf("Recognize mismatch (-want +got):\n%s", diff)
	}

	if err := r.Forget("Alice"); err != nil {
		t.Fatal(err)
	}
	if err := r.Forget("Alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Forget = %v", err)
	}
	names, _ = r.List()
	if diff := cmp.Diff([]string{"Bob"}, names); diff != "" {
		t.Errorf("after Forget (-want +got):\n%s", diff)
	}
}

func TestEnrollFileFormat(t *testing.T) {
	r, img := newRegistry(t, &fakeAnalyzer{faces: [][]float32{vec(0)}}, 0)
	if err := r.Enroll(context.Background(), "Carol", img); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(r.cfg.Dir, "Carol.json"))
	if err != nil {
		t.Fatal(err)
	}
	var p Person
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Name != "Carol" || len(p.Embedding) != EmbeddingSize || p.AddedAt != 1700000000 {
		t.Errorf("stored person = %s %d %v", p.Name, len(p.Embedding), p.AddedAt)
	}
}

func TestEnrollCapacity(t *testing.T) {
	r, img := newRegistry(t, &fakeAnalyzer{faces: [][]float32{vec(0)}}, 2)
	ctx := context.Background()

	for _, n := range []string{"a", "b"} {
		if err := r.Enroll(ctx, n, img); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Enroll(ctx, "c", img); !errors.Is(err, ErrCapacity) {
		t.Errorf("third Enroll = %v, want ErrCapacity", err)
	}
	if err := r.Enroll(ctx, "a", img); err != nil {
		t.Errorf("re-enrolling existing name at capacity: %v", err)
	}
}

func TestEnrollErrors(t *testing.T) {
	a := &fakeAnalyzer{}
	r, img := newRegistry(t, a, 0)
	ctx := context.Background()

	if err := r.Enroll(ctx, "x", img); !errors.Is(err, ErrNoFace) {
		t.Errorf("no face: %v", err)
	}
	for _, bad := range []string{"", "  ", "../evil", `a\b`, ".."} {
		if err := r.Enroll(ctx, bad, img); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Enroll(%q) = %v", bad, err)
		}
	}
	if err := r.Enroll(ctx, "x", filepath.Join(t.TempDir(), "missing.jpg")); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("missing image: %v", err)
	}

	boom := errors.New("boom")
	a.err = boom
	if err := r.Enroll(ctx, "x", img); !errors.Is(err, boom) {
		t.Errorf("analyzer error: %v", err)
	}

	nodet, _ := newRegistry(t, nil, 0)
	if _, err := nodet.Recognize(ctx, img); !errors.Is(err, ErrNoDetector) {
		t.Errorf("no detector: %v", err)
	}
}

func TestRecognizeCapturesWhenNoPath(t *testing.T) {
	a := &fakeAnalyzer{faces: [][]float32{vec(5)}}
	r, _ := newRegistry(t, a, 0)
	cam := r.camera.(*fakeCamera)

	got, err := r.Recognize(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cam.shots != 1 {
		t.Errorf("camera used %d times", cam.shots)
	}
	if diff := cmp.Diff([]string{Unknown}, got); diff != "" {
		t.Errorf("Recognize (-want +got):\n%s", diff)
	}
	if filepath.Base(a.paths[0]) != "recognize.jpg" {
		t.Errorf("captured to %s", a.paths[0])
	}
}

func TestLoadSkipsMalformed(t *testing.T) {
	r, img := newRegistry(t, &fakeAnalyzer{faces: [][]float32{vec(0)}}, 0)
	os.WriteFile(filepath.Join(r.cfg.Dir, "junk.json"), []byte("{"), 0o644)
	os.WriteFile(filepath.Join(r.cfg.Dir, "short.json"), []byte(`{"name":"short","embedding":[1,2]}`), 0o644)
	if err := r.Enroll(context.Background(), "ok", img); err != nil {
		t.Fatal(err)
	}

	names, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ok"}, names); diff != "" {
		t.Errorf("List (-want +got):\n%s", diff)
	}
}
