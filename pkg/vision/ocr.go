package vision

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
)

// OCRConfig configures the OCR front end.
type OCRConfig struct {
	Simulate     bool
	TesseractCmd string
	Language     string // tesseract -l value
	GoogleAPIKey string
}

// OCR tries each reader in order and returns the first non-empty text.
type OCR struct {
	simulate bool
	readers  []Reader
	logger   *slog.Logger
}

// NewOCR builds readers from cfg: tesseract if installed, then Gemini if
// a key is set.
func NewOCR(cfg OCRConfig, logger *slog.Logger) *OCR {
	if logger == nil {
		logger = slog.Default()
	}
	var readers []Reader
	if t := NewTesseract(cfg.TesseractCmd, cfg.Language); t.Available() {
		readers = append(readers, t)
	}
	if cfg.GoogleAPIKey != "" {
		readers = append(readers, NewGemini(cfg.GoogleAPIKey))
	}
	return NewOCRWithReaders(cfg.Simulate, logger, readers...)
}

// NewOCRWithReaders builds an OCR over explicit readers.
func NewOCRWithReaders(simulate bool, logger *slog.Logger, readers ...Reader) *OCR {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCR{
		simulate: simulate,
		readers:  readers,
		logger:   logger.With("component", "vision.ocr"),
	}
}

// ReadText returns the text in the image at path. Empty text with a nil
// error means the readers ran and found nothing.
func (o *OCR) ReadText(ctx context.Context, path string) (string, error) {
	if o.simulate {
		return SimulatedText, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrImageNotFound
		}
		return "", err
	}
	if len(o.readers) == 0 {
		return "", ErrNoReader
	}

	var errs []error
	for _, r := range o.readers {
		text, err := r.ReadText(ctx, path)
		if err != nil {
			o.logger.Warn("ocr backend failed", "backend", r.Name(), "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			o.logger.Debug("ocr read text", "backend", r.Name(), "chars", len(text))
			return text, nil
		}
	}
	if len(errs) == len(o.readers) {
		return "", errors.Join(errs...)
	}
	return "", nil
}
