package motion

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestRunConstantSpeed(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	e := testEngine(dev, clock)

	if err := e.RunConstantSpeed(context.Background(), 36_000_000, 3); err != nil {
		t.Fatalf("RunConstantSpeed: %v", err)
	}
	if !slices.Equal(dev.velocities, []int{36_000_000, 0}) {
		t.Errorf("velocities = %v, want [36000000 0]", dev.velocities)
	}
	// 3600 units per read, 7200 per revolution.
	if dev.pos != 3*7200 {
		t.Errorf("stopped at %d, want %d", dev.pos, 3*7200)
	}
	s := e.tel.Snapshot()
	if s.Cycles != 3 || s.Mode != ModeContinuous || s.TargetVelocity != 0 {
		t.Errorf("snapshot = %+v", s)
	}
	if gap := dev.maxGap(); gap > e.set.KeepalivePeriod {
		t.Errorf("max refresh gap %s exceeds keepalive period", gap)
	}
}

func TestRunConstantSpeedReverse(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	e := testEngine(dev, clock)

	if err := e.RunConstantSpeed(context.Background(), -36_000_000, 2); err != nil {
		t.Fatalf("RunConstantSpeed: %v", err)
	}
	if c := e.tel.Snapshot().Cycles; c != 2 {
		t.Errorf("cycles = %d, want 2", c)
	}
	if dev.pos >= 0 {
		t.Errorf("reverse run ended at %d", dev.pos)
	}
}

func TestRunConstantSpeedPauseResume(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	pause := &PauseSwitch{}
	pause.Set(true)
	clock.onSleep = func(n int) {
		if n == 5 {
			pause.Set(false)
		}
	}
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Pause = pause })

	if err := e.RunConstantSpeed(context.Background(), 36_000_000, 1); err != nil {
		t.Fatalf("RunConstantSpeed: %v", err)
	}
	want := []int{36_000_000, 0, 36_000_000, 0}
	if !slices.Equal(dev.velocities, want) {
		t.Errorf("velocities = %v, want %v", dev.velocities, want)
	}
}

func TestRunConstantSpeedAdjust(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	in := &scriptInput{clock: clock, frames: []map[Action]bool{{SpeedUp: true}}}
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Input = in })

	if err := e.RunConstantSpeed(context.Background(), 36_000_000, 20); err != nil {
		t.Fatalf("RunConstantSpeed: %v", err)
	}
	top := slices.Max(dev.velocities)
	if top != e.set.Speed {
		t.Errorf("top velocity %d, want ramp to the ceiling %d", top, e.set.Speed)
	}
	if c := e.tel.Snapshot().Cycles; c != 20 {
		t.Errorf("cycles = %d, want 20 (adjusting must not reset the count)", c)
	}
}

func TestRunConstantSpeedRejectsSpeed(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	e := testEngine(dev, clock)

	for _, speed := range []int{0, 10, e.set.Speed + 1, -e.set.Speed - 1} {
		var ce *ConfigError
		if err := e.RunConstantSpeed(context.Background(), speed, 1); !errors.As(err, &ce) {
			t.Errorf("speed %d: err = %v, want *ConfigError", speed, err)
		}
	}
}

func TestStepSpeed(t *testing.T) {
	e := testEngine(newSim(newFakeClock()), newFakeClock())
	step := e.set.Speed / 10

	tests := []struct {
		v, dir, want int
	}{
		{36_000_000, 1, 36_000_000 + step},
		{36_000_000, -1, 36_000_000 - step},
		{-36_000_000, 1, -36_000_000 - step},
		{e.set.Speed, 1, e.set.Speed},
		{e.set.MinSpeed, -1, e.set.MinSpeed},
		{-e.set.MinSpeed, -1, -e.set.MinSpeed},
	}
	for _, tt := range tests {
		if got := e.stepSpeed(tt.v, tt.dir); got != tt.want {
			t.Errorf("stepSpeed(%d, %d) = %d, want %d", tt.v, tt.dir, got, tt.want)
		}
	}
}
