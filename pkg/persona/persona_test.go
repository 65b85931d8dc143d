package persona

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-lumen/internal/log"
	"github.com/teslashibe/go-lumen/pkg/memory"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "persona.json")
	s := New(memory.NewFileStore(path), log.Discard())
	return s, path
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDefaults(t *testing.T) {
	s, _ := testStore(t)
	p := s.Get()
	if p.Curiosity != 0.5 || p.Patience != 0.5 {
		t.Errorf("traits = %v/%v, want 0.5/0.5", p.Curiosity, p.Patience)
	}
	if p.Affinity == nil || len(p.Affinity) != 0 {
		t.Errorf("Affinity = %v, want empty map", p.Affinity)
	}
}

func TestUpdateTraitClamps(t *testing.T) {
	s, _ := testStore(t)

	p, err := s.UpdateTrait(TraitCuriosity, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Curiosity != 1 {
		t.Errorf("Curiosity = %v, want 1", p.Curiosity)
	}

	p, err = s.UpdateTrait(TraitPatience, -5)
	if err != nil {
		t.Fatal(err)
	}
	if p.Patience != 0 {
		t.Errorf("Patience = %v, want 0", p.Patience)
	}

	if got := s.Get(); got.Curiosity != 1 || got.Patience != 0 {
		t.Errorf("persisted = %+v", got)
	}
}

func TestUpdateTraitUnknown(t *testing.T) {
	s, _ := testStore(t)
	if _, err := s.UpdateTrait("bravery", 0.1); !errors.Is(err, ErrUnknownTrait) {
		t.Fatalf("err = %v, want ErrUnknownTrait", err)
	}
}

func TestUpdateAffinityStartsNeutral(t *testing.T) {
	s, _ := testStore(t)
	p, err := s.UpdateAffinity("Ana", 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(p.Affinity["Ana"], 0.6) {
		t.Errorf("Affinity[Ana] = %v, want 0.6", p.Affinity["Ana"])
	}
	p, _ = s.UpdateAffinity("Ana", 1)
	if p.Affinity["Ana"] != 1 {
		t.Errorf("Affinity[Ana] = %v, want clamp to 1", p.Affinity["Ana"])
	}
}

func TestUpdateOnEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     string
		payload   map[string]any
		curiosity float64
		patience  float64
		affinity  map[string]float64
	}{
		{"greet", EventGreet, map[string]any{"name": "Ana"}, 0.51, 0.5, map[string]float64{"Ana": 0.55}},
		{"greet without name", EventGreet, nil, 0.5, 0.5, map[string]float64{}},
		{"interrupt", EventInterrupt, nil, 0.5, 0.4, map[string]float64{}},
		{"novel object", EventNovelObject, map[string]any{"label": "chair"}, 0.52, 0.5, map[string]float64{}},
		{"obstacle", EventObstacle, nil, 0.5, 0.48, map[string]float64{}},
		{"unknown", "sneeze", nil, 0.5, 0.5, map[string]float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := testStore(t)
			p, err := s.UpdateOnEvent(tt.event, tt.payload)
			if err != nil {
				t.Fatal(err)
			}
			if !approx(p.Curiosity, tt.curiosity) {
				t.Errorf("Curiosity = %v, want %v", p.Curiosity, tt.curiosity)
			}
			if !approx(p.Patience, tt.patience) {
				t.Errorf("Patience = %v, want %v", p.Patience, tt.patience)
			}
			if len(p.Affinity) != len(tt.affinity) {
				t.Fatalf("Affinity = %v, want %v", p.Affinity, tt.affinity)
			}
			for k, v := range tt.affinity {
				if !approx(p.Affinity[k], v) {
					t.Errorf("Affinity[%s] = %v, want %v", k, p.Affinity[k], v)
				}
			}
		})
	}
}

func TestUnknownEventStillPersists(t *testing.T) {
	s, path := testStore(t)
	stamp := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	if _, err := s.UpdateOnEvent("sneeze", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("persona file not written: %v", err)
	}
	if got := s.Get().LastUpdate; !got.Equal(stamp) {
		t.Errorf("LastUpdate = %v, want %v", got, stamp)
	}
}

func TestRepeatedInterruptsDropPatienceBelowThreshold(t *testing.T) {
	s, _ := testStore(t)
	var p State
	for i := 0; i < 3; i++ {
		p, _ = s.UpdateOnEvent(EventInterrupt, nil)
	}
	if p.Patience >= 0.3 {
		t.Errorf("Patience = %v after three interrupts, want < 0.3", p.Patience)
	}
}

func TestStepDecayConvergesWithoutOvershoot(t *testing.T) {
	s, _ := testStore(t)
	s.UpdateTrait(TraitCuriosity, 0.5)
	s.UpdateTrait(TraitPatience, -0.3)
	s.UpdateAffinity("Ana", 0.45)
	s.UpdateAffinity("Bo", -0.45)

	prev := s.Get()
	for i := 0; i < 2000; i++ {
		p, err := s.StepDecay(0.002)
		if err != nil {
			t.Fatal(err)
		}
		if p.Curiosity < Neutral || p.Patience > Neutral {
			t.Fatalf("overshoot at step %d: %+v", i, p)
		}
		if p.Curiosity > prev.Curiosity || p.Patience < prev.Patience {
			t.Fatalf("moved away from neutral at step %d", i)
		}
		if p.Affinity["Ana"] < Neutral || p.Affinity["Bo"] > Neutral {
			t.Fatalf("affinity overshoot at step %d: %v", i, p.Affinity)
		}
		prev = p
	}

	p := s.Get()
	if p.Curiosity != Neutral || p.Patience != Neutral {
		t.Errorf("traits = %v/%v, want exactly neutral", p.Curiosity, p.Patience)
	}
	if p.Affinity["Ana"] != Neutral || p.Affinity["Bo"] != Neutral {
		t.Errorf("affinity = %v, want exactly neutral", p.Affinity)
	}
}

func TestStepDecayAffinityHalfRate(t *testing.T) {
	s, _ := testStore(t)
	s.UpdateTrait(TraitCuriosity, 0.2)
	s.UpdateAffinity("Ana", 0.2)

	p, _ := s.StepDecay(0.1)
	if !approx(p.Curiosity, 0.6) {
		t.Errorf("Curiosity = %v, want 0.6", p.Curiosity)
	}
	if !approx(p.Affinity["Ana"], 0.65) {
		t.Errorf("Affinity = %v, want 0.65", p.Affinity["Ana"])
	}
}

func TestCorruptStateFallsBackToDefaults(t *testing.T) {
	s, path := testStore(t)
	if err := os.WriteFile(path, []byte("{curiosity: nope"), 0644); err != nil {
		t.Fatal(err)
	}

	p := s.Get()
	if p.Curiosity != 0.5 || p.Patience != 0.5 || len(p.Affinity) != 0 {
		t.Errorf("Get on corrupt file = %+v, want defaults", p)
	}

	p, err := s.UpdateOnEvent(EventNovelObject, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(p.Curiosity, 0.52) {
		t.Errorf("Curiosity = %v, want 0.52 after recovery", p.Curiosity)
	}
}

func TestOutOfRangeStateIsClamped(t *testing.T) {
	s, path := testStore(t)
	raw := `{"curiosity": 3, "patience": -1, "affinity": {"bob": 5, "eve": -2, "ana": 0.25}}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	p := s.Get()
	want := map[string]float64{"bob": 1, "eve": 0, "ana": 0.25}
	if diff := cmp.Diff(want, p.Affinity); diff != "" {
		t.Errorf("Affinity mismatch (-want +got):\n%s", diff)
	}
	if p.Curiosity != 1 || p.Patience != 0 {
		t.Errorf("Curiosity = %v, Patience = %v, want 1 and 0", p.Curiosity, p.Patience)
	}
}
