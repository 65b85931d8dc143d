// Package faces enrolls and recognizes a small set of known people.
//
// A face is reduced to a 32x32 grayscale thumbnail flattened into a unit
// vector. Recognition compares each detected face against every enrolled
// embedding by cosine similarity; anything under the threshold is
// reported as "Unknown". People are stored one JSON file per name.
package faces

import (
	"context"
	"errors"
	"math"
)

// Unknown is reported for a detected face that matches nobody.
const Unknown = "Unknown"

// Defaults for Registry.
const (
	DefaultThreshold = 0.8
	DefaultMaxPeople = 10
	EmbeddingSide    = 32
	EmbeddingSize    = EmbeddingSide * EmbeddingSide
)

var (
	ErrCapacity      = errors.New("faces: capacity reached, forget someone first")
	ErrNoFace        = errors.New("faces: no face detected")
	ErrNotFound      = errors.New("faces: person not found")
	ErrInvalidName   = errors.New("faces: invalid name")
	ErrImageNotFound = errors.New("faces: image not found")
	ErrNoDetector    = errors.New("faces: face detector unavailable")
)

// Analyzer finds faces in an image file and returns one embedding per
// face, in detection order.
type Analyzer interface {
	Embeddings(ctx context.Context, path string) ([][]float32, error)
}

// Capturer takes a fresh picture when no image path is given.
type Capturer interface {
	Capture(ctx context.Context, path string) (string, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when lengths
// differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-6)
}

// Normalize scales v to unit length in place.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(sum) + 1e-6)
	for i := range v {
		v[i] /= n
	}
	return v
}
