package engine

import (
	"path/filepath"
	"time"
)

// Config holds the engine's thresholds and timings.
type Config struct {
	// ReadImage and SceneImage are where Reading and Describe capture to.
	ReadImage  string
	SceneImage string

	ListenTimeout time.Duration

	// Safety.
	CliffCM          float64
	ObstacleCM       float64
	VeryCloseCM      float64
	ObstacleCooldown time.Duration
	GasPPM           float64
	COPPM            float64
	TempRange        [2]float64
	HumidityRange    [2]float64
	IRTempRange      [2]float64

	// Navigation announces position at most this often.
	LocationEvery time.Duration

	// Autonomy.
	QuietFor      time.Duration
	IdleFor       time.Duration
	CuriosityGate float64
	NoveltyWindow time.Duration

	// Persona drift.
	DecayEvery int
	DecayRate  float64
}

// DefaultConfig returns the stock thresholds, capturing into dataDir.
func DefaultConfig(dataDir string) Config {
	if dataDir == "" {
		dataDir = "data"
	}
	return Config{
		ReadImage:        filepath.Join(dataDir, "read.jpg"),
		SceneImage:       filepath.Join(dataDir, "scene.jpg"),
		ListenTimeout:    500 * time.Millisecond,
		CliffCM:          200,
		ObstacleCM:       80,
		VeryCloseCM:      40,
		ObstacleCooldown: 2 * time.Second,
		GasPPM:           200,
		COPPM:            70,
		TempRange:        [2]float64{10, 35},
		HumidityRange:    [2]float64{25, 70},
		IRTempRange:      [2]float64{10, 40},
		LocationEvery:    10 * time.Second,
		QuietFor:         5 * time.Second,
		IdleFor:          10 * time.Second,
		CuriosityGate:    0.4,
		NoveltyWindow:    300 * time.Second,
		DecayEvery:       5,
		DecayRate:        0.002,
	}
}
