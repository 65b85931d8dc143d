// Package persona keeps lumen's small affective state: two traits and a
// per-person affinity, all in [0, 1], persisted after every change.
package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-lumen/pkg/memory"
)

// Neutral is the resting value every trait and affinity decays toward.
const Neutral = 0.5

// Trait names accepted by UpdateTrait.
const (
	TraitCuriosity = "curiosity"
	TraitPatience  = "patience"
)

// Events understood by UpdateOnEvent.
const (
	EventGreet       = "greet"
	EventInterrupt   = "interrupt"
	EventNovelObject = "novel_object"
	EventObstacle    = "obstacle"
)

// ErrUnknownTrait is returned by UpdateTrait for names other than the two traits.
var ErrUnknownTrait = errors.New("persona: unknown trait")

// State is a snapshot of the persona.
type State struct {
	Curiosity  float64            `json:"curiosity"`
	Patience   float64            `json:"patience"`
	Affinity   map[string]float64 `json:"affinity"`
	LastUpdate time.Time          `json:"last_update"`
}

// Default returns the neutral persona.
func Default() State {
	return State{
		Curiosity: Neutral,
		Patience:  Neutral,
		Affinity:  map[string]float64{},
	}
}

// Store reads and writes the persona through a memory.Store. Each
// operation is load, mutate, save.
type Store struct {
	backend memory.Store
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a Store on backend.
func New(backend memory.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger.With("component", "persona"),
		now:     time.Now,
	}
}

// Get returns the current persona.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// UpdateTrait adds delta to a trait, clamped to [0, 1].
func (s *Store) UpdateTrait(name string, delta float64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.load()
	if err := applyTrait(&p, name, delta); err != nil {
		return p, err
	}
	return p, s.save(&p)
}

// UpdateAffinity adds delta to a person's affinity, starting from Neutral.
func (s *Store) UpdateAffinity(person string, delta float64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.load()
	applyAffinity(&p, person, delta)
	return p, s.save(&p)
}

// UpdateOnEvent applies the rule for event. Events without a rule, and a
// greet without a name, still persist the unchanged state.
func (s *Store) UpdateOnEvent(event string, payload map[string]any) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.load()
	switch event {
	case EventGreet:
		if name, _ := payload["name"].(string); name != "" {
			applyAffinity(&p, name, 0.05)
			applyTrait(&p, TraitCuriosity, 0.01)
		}
	case EventInterrupt:
		applyTrait(&p, TraitPatience, -0.10)
	case EventNovelObject:
		applyTrait(&p, TraitCuriosity, 0.02)
	case EventObstacle:
		applyTrait(&p, TraitPatience, -0.02)
	}
	return p, s.save(&p)
}

// StepDecay moves both traits rate closer to Neutral and every affinity
// rate/2 closer, never past it.
func (s *Store) StepDecay(rate float64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.load()
	p.Curiosity = toward(p.Curiosity, rate)
	p.Patience = toward(p.Patience, rate)
	for name, v := range p.Affinity {
		p.Affinity[name] = toward(v, rate/2)
	}
	return p, s.save(&p)
}

// load returns defaults when nothing is stored or the stored document is
// unreadable.
func (s *Store) load() State {
	data, err := s.backend.Load()
	if err != nil {
		s.logger.Warn("load failed, using defaults", "error", err)
		return Default()
	}
	if len(data) == 0 {
		return Default()
	}

	p := Default()
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("stored persona malformed, using defaults", "error", err)
		return Default()
	}
	if p.Affinity == nil {
		p.Affinity = map[string]float64{}
	}
	p.Curiosity = clamp(p.Curiosity)
	p.Patience = clamp(p.Patience)
	for person, v := range p.Affinity {
		p.Affinity[person] = clamp(v)
	}
	return p
}

func (s *Store) save(p *State) error {
	p.LastUpdate = s.now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}
	if err := s.backend.Save(data); err != nil {
		return fmt.Errorf("save persona: %w", err)
	}
	return nil
}

func applyTrait(p *State, name string, delta float64) error {
	switch name {
	case TraitCuriosity:
		p.Curiosity = clamp(p.Curiosity + delta)
	case TraitPatience:
		p.Patience = clamp(p.Patience + delta)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTrait, name)
	}
	return nil
}

func applyAffinity(p *State, person string, delta float64) {
	v, ok := p.Affinity[person]
	if !ok {
		v = Neutral
	}
	p.Affinity[person] = clamp(v + delta)
}

func toward(v, rate float64) float64 {
	switch {
	case v > Neutral:
		return max(Neutral, v-rate)
	case v < Neutral:
		return min(Neutral, v+rate)
	}
	return v
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
