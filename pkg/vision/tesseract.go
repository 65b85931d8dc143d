package vision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// Tesseract runs the tesseract CLI on a binarized copy of the image.
type Tesseract struct {
	// Cmd is the tesseract executable. Empty means "tesseract" on PATH.
	Cmd string

	// Lang is passed as -l when set (e.g. "eng", "ben").
	Lang string

	run        func(ctx context.Context, name string, args ...string) ([]byte, error)
	preprocess func(src, dst string) error
}

// NewTesseract creates a tesseract reader.
func NewTesseract(cmd, lang string) *Tesseract {
	return &Tesseract{
		Cmd:        cmd,
		Lang:       lang,
		run:        runOutput,
		preprocess: Binarize,
	}
}

// Available reports whether the executable can be found.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.cmd())
	return err == nil
}

// Name returns "tesseract".
func (t *Tesseract) Name() string { return "tesseract" }

// ReadText binarizes the image and returns tesseract's trimmed output.
func (t *Tesseract) ReadText(ctx context.Context, path string) (string, error) {
	dir, err := os.MkdirTemp("", "lumen-ocr-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	prepped := filepath.Join(dir, "gray.png")
	if err := t.preprocess(path, prepped); err != nil {
		return "", err
	}

	args := []string{prepped, "stdout"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}
	out, err := t.run(ctx, t.cmd(), args...)
	if err != nil {
		return "", fmt.Errorf("vision: tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (t *Tesseract) cmd() string {
	if t.Cmd != "" {
		return t.Cmd
	}
	return "tesseract"
}

// Binarize writes a grayscale, Otsu-thresholded copy of src to dst.
func Binarize(src, dst string) error {
	img := gocv.IMRead(src, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return ErrUnreadableImage
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	if !gocv.IMWrite(dst, bin) {
		return fmt.Errorf("vision: write %s failed", dst)
	}
	return nil
}

func runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
