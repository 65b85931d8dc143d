package faces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// Person is one enrolled face. AddedAt is Unix seconds.
type Person struct {
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding"`
	AddedAt   float64   `json:"added_at"`
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Dir       string  // one <name>.json per person
	CaptureTo string  // directory for fresh captures when no image is given
	Threshold float64 // minimum cosine similarity for a match
	MaxPeople int
}

// Registry stores people on disk and matches faces against them.
type Registry struct {
	cfg      RegistryConfig
	analyzer Analyzer
	camera   Capturer
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// NewRegistry creates a registry, creating cfg.Dir if needed. analyzer may
// be nil, in which case Enroll and Recognize report ErrNoDetector.
func NewRegistry(cfg RegistryConfig, analyzer Analyzer, camera Capturer, logger *slog.Logger) (*Registry, error) {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxPeople <= 0 {
		cfg.MaxPeople = DefaultMaxPeople
	}
	if cfg.CaptureTo == "" {
		cfg.CaptureTo = filepath.Dir(cfg.Dir)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("faces: create %s: %w", cfg.Dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		analyzer: analyzer,
		camera:   camera,
		logger:   logger.With("component", "faces"),
		now:      time.Now,
	}, nil
}

// Enroll stores the first face found in imagePath under name, replacing
// any earlier enrollment of that name. An empty imagePath captures a new
// picture.
func (r *Registry) Enroll(ctx context.Context, name, imagePath string) error {
	name = strings.TrimSpace(name)
	file, err := r.file(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		n, err := r.count()
		if err != nil {
			return err
		}
		if n >= r.cfg.MaxPeople {
			return ErrCapacity
		}
	}

	embs, err := r.analyze(ctx, imagePath, "enroll.jpg")
	if err != nil {
		return err
	}
	if len(embs) == 0 {
		return ErrNoFace
	}

	p := Person{
		Name:      name,
		Embedding: embs[0],
		AddedAt:   float64(r.now().UnixNano()) / 1e9,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("faces: save %s: %w", name, err)
	}
	r.logger.Info("person enrolled", "name", name)
	return nil
}

// List returns enrolled names in sorted order.
func (r *Registry) List() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	people, err := r.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(people))
	for _, p := range people {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return names, nil
}

// Forget removes an enrolled person.
func (r *Registry) Forget(name string) error {
	file, err := r.file(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("faces: delete %s: %w", name, err)
	}
	r.logger.Info("person forgotten", "name", name)
	return nil
}

// Recognize returns one entry per detected face: the best-matching
// enrolled name, or Unknown. An empty imagePath captures a new picture.
func (r *Registry) Recognize(ctx context.Context, imagePath string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	embs, err := r.analyze(ctx, imagePath, "recognize.jpg")
	if err != nil {
		return nil, err
	}
	known, err := r.load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(embs))
	for _, emb := range embs {
		names = append(names, r.match(emb, known))
	}
	return names, nil
}

func (r *Registry) match(emb []float32, known []Person) string {
	best, bestScore := "", 0.0
	for _, p := range known {
		if s := Cosine(emb, p.Embedding); s > bestScore {
			best, bestScore = p.Name, s
		}
	}
	if best != "" && bestScore >= r.cfg.Threshold {
		return best
	}
	return Unknown
}

func (r *Registry) analyze(ctx context.Context, imagePath, captureName string) ([][]float32, error) {
	if r.analyzer == nil {
		return nil, ErrNoDetector
	}
	if imagePath == "" {
		if r.camera == nil {
			return nil, ErrImageNotFound
		}
		p, err := r.camera.Capture(ctx, filepath.Join(r.cfg.CaptureTo, captureName))
		if err != nil {
			return nil, err
		}
		imagePath = p
	}
	if _, err := os.Stat(imagePath); err != nil {
		return nil, ErrImageNotFound
	}
	return r.analyzer.Embeddings(ctx, imagePath)
}

// load reads every valid person file. Unreadable or malformed files and
// embeddings of the wrong size are skipped.
func (r *Registry) load() ([]Person, error) {
	matches, err := filepath.Glob(filepath.Join(r.cfg.Dir, "*.json"))
	if err != nil {
		return nil, err
	}
	people := make([]Person, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var p Person
		if json.Unmarshal(data, &p) != nil || p.Name == "" || len(p.Embedding) != EmbeddingSize {
			r.logger.Debug("skipping malformed person file", "file", m)
			continue
		}
		people = append(people, p)
	}
	return people, nil
}

func (r *Registry) count() (int, error) {
	matches, err := filepath.Glob(filepath.Join(r.cfg.Dir, "*.json"))
	return len(matches), err
}

func (r *Registry) file(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return filepath.Join(r.cfg.Dir, name+".json"), nil
}
