// Package vision extracts printed text from captured images.
//
// Tesseract runs locally after a grayscale and Otsu threshold pass. Gemini
// is a hosted fallback when GOOGLE_API_KEY is set. OCR strings readers
// together and returns canned text in simulation.
package vision

import (
	"context"
	"errors"
)

// SimulatedText is returned by OCR in simulation mode.
const SimulatedText = "Simulation: This is sample text from a book page."

var (
	// ErrImageNotFound is returned when the image path does not exist.
	ErrImageNotFound = errors.New("vision: image not found")

	// ErrNoReader is returned when no OCR backend is configured.
	ErrNoReader = errors.New("vision: no OCR backend available")

	// ErrUnreadableImage is returned when the image cannot be decoded.
	ErrUnreadableImage = errors.New("vision: failed to read the image")
)

// Reader extracts text from an image file.
type Reader interface {
	ReadText(ctx context.Context, path string) (string, error)
	Name() string
}
