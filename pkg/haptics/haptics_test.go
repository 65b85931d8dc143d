package haptics

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePWM struct {
	duties []float64
	err    error
}

func (f *fakePWM) SetDuty(d float64) error {
	f.duties = append(f.duties, d)
	return f.err
}

func TestBuzzDrivesPin(t *testing.T) {
	pin := &fakePWM{}
	New(pin, nil).Buzz(context.Background(), 1.7, time.Millisecond)

	if len(pin.duties) != 2 || pin.duties[0] != 1 || pin.duties[1] != 0 {
		t.Errorf("duties = %v, want [1 0]", pin.duties)
	}
}

func TestBuzzPinFailureSkipsWait(t *testing.T) {
	pin := &fakePWM{err: errors.New("gpio busy")}
	start := time.Now()
	New(pin, nil).Buzz(context.Background(), 0.5, time.Second)
	if time.Since(start) > 500*time.Millisecond {
		t.Error("failed buzz should return immediately")
	}
}

func TestSimulatedBuzzWaits(t *testing.T) {
	start := time.Now()
	New(nil, nil).Buzz(context.Background(), 0.6, 30*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("simulated buzz returned after %v", elapsed)
	}
}

func TestBuzzHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	New(nil, nil).Buzz(ctx, 1, 5*time.Second)
	if time.Since(start) > time.Second {
		t.Error("cancelled buzz kept waiting")
	}
}
