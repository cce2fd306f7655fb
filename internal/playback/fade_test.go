package playback

import (
	"testing"
	"time"
)

func TestFadeScheduleFullFadeOut(t *testing.T) {
	steps := FadeSchedule(1.0, 0.0)

	if len(steps) != 10 {
		t.Fatalf("steps = %d, want 10", len(steps))
	}

	want := []float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1, 0.0}
	for i, step := range steps {
		if step.Volume != want[i] {
			t.Errorf("step %d volume = %v, want %v", i, step.Volume, want[i])
		}
		if wantDelay := time.Duration(i+1) * FadeStepInterval; step.Delay != wantDelay {
			t.Errorf("step %d delay = %v, want %v", i, step.Delay, wantDelay)
		}
	}
}

func TestFadeScheduleFullFadeIn(t *testing.T) {
	steps := FadeSchedule(0.0, 1.0)

	if len(steps) != 10 {
		t.Fatalf("steps = %d, want 10", len(steps))
	}
	if last := steps[len(steps)-1].Volume; last != 1.0 {
		t.Errorf("final volume = %v, want exact 1.0", last)
	}
	for i, step := range steps {
		if step.Volume != roundVolume(step.Volume) {
			t.Errorf("step %d volume %v not rounded to one decimal", i, step.Volume)
		}
	}
}

func TestFadeScheduleStepSizeIsFixedNotProportional(t *testing.T) {
	// A short fade covers less distance in fewer steps at the same cadence.
	steps := FadeSchedule(0.3, 0.0)
	if len(steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(steps))
	}
	if steps[0].Volume != 0.2 || steps[2].Volume != 0.0 {
		t.Errorf("unexpected volumes %+v", steps)
	}
}

func TestFadeScheduleZeroDistance(t *testing.T) {
	steps := FadeSchedule(0.5, 0.5)
	if len(steps) != 1 || steps[0].Volume != 0.5 {
		t.Fatalf("zero-distance fade must still emit the target step, got %+v", steps)
	}
}

func TestFadeScheduleClampsInput(t *testing.T) {
	steps := FadeSchedule(1.7, -0.2)
	if first := steps[0].Volume; first != 0.9 {
		t.Errorf("first step = %v, want clamp to start from 1.0", first)
	}
	if last := steps[len(steps)-1].Volume; last != 0.0 {
		t.Errorf("final step = %v, want clamp to 0.0", last)
	}
}
