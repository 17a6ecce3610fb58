package motion

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestRunManual(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	in := &scriptInput{clock: clock, frames: []map[Action]bool{
		{JogPositive: true},
		{JogPositive: true, SpeedUp: true},
		{JogPositive: true, Stop: true},
		{Zero: true},
		{JogNegative: true},
		{Quit: true},
	}}
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Input = in })
	jog := e.set.JogSpeed
	faster := rampUp(jog)

	if err := e.RunManual(context.Background()); err != nil {
		t.Fatalf("RunManual: %v", err)
	}

	wantVel := []int{jog, faster, 0, -faster, 0}
	if !slices.Equal(dev.velocities, wantVel) {
		t.Errorf("velocities = %v, want %v", dev.velocities, wantVel)
	}
	if !slices.Equal(dev.maxSpeeds, []int{jog, faster}) {
		t.Errorf("max speeds = %v, want [%d %d]", dev.maxSpeeds, jog, faster)
	}
	if !slices.Equal(dev.zeroed, []int{0}) {
		t.Errorf("zeroed = %v, want [0]", dev.zeroed)
	}
	// One refresh per loop iteration.
	if got := len(dev.refreshes); got != len(in.frames) {
		t.Errorf("%d watchdog refreshes, want %d", got, len(in.frames))
	}
	if s := e.tel.Snapshot(); s.Mode != ModeManual || s.Status != "Quit" {
		t.Errorf("snapshot mode=%s status=%q", s.Mode, s.Status)
	}
}

func TestRunManualRampBounds(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	frames := make([]map[Action]bool, 0, 200)
	for range 100 {
		frames = append(frames, map[Action]bool{SpeedUp: true, AccelUp: true})
	}
	for range 99 {
		frames = append(frames, map[Action]bool{SpeedDown: true, AccelDown: true})
	}
	frames = append(frames, map[Action]bool{Quit: true})
	in := &scriptInput{clock: clock, frames: frames}
	e := testEngine(dev, clock, func(c *EngineConfig) {
		c.Input = in
		c.Settings.AdjustInterval = 0
	})

	if err := e.RunManual(context.Background()); err != nil {
		t.Fatalf("RunManual: %v", err)
	}
	if top := slices.Max(dev.maxSpeeds); top != e.set.Speed {
		t.Errorf("speed ramped to %d, want ceiling %d", top, e.set.Speed)
	}
	if low := slices.Min(dev.maxSpeeds); low != e.set.MinSpeed {
		t.Errorf("speed ramped down to %d, want floor %d", low, e.set.MinSpeed)
	}
}

func TestRunManualAdjustRateLimited(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	frames := make([]map[Action]bool, 10)
	for i := range frames {
		frames[i] = map[Action]bool{SpeedDown: true}
	}
	frames = append(frames, map[Action]bool{Quit: true})
	in := &scriptInput{clock: clock, frames: frames}
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Input = in })

	if err := e.RunManual(context.Background()); err != nil {
		t.Fatalf("RunManual: %v", err)
	}
	// 10 iterations of 20ms with a 100ms adjust interval: adjustments at 0 and 100ms.
	if got := len(dev.maxSpeeds) - 1; got != 2 {
		t.Errorf("%d speed adjustments, want 2", got)
	}
}

func TestRunManualGoZero(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	dev.pos = 500
	in := &scriptInput{clock: clock, frames: []map[Action]bool{
		{GoZero: true},
		{Quit: true},
	}}
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Input = in })

	if err := e.RunManual(context.Background()); err != nil {
		t.Fatalf("RunManual: %v", err)
	}
	if !slices.Equal(dev.targets, []int{0}) || dev.pos != 0 {
		t.Errorf("targets = %v pos = %d, want a single move to 0", dev.targets, dev.pos)
	}
}

func TestRunManualPausedIgnoresDirection(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	pause := &PauseSwitch{}
	pause.Set(true)
	in := &scriptInput{clock: clock, frames: []map[Action]bool{
		{JogPositive: true},
		{JogPositive: true},
		{Quit: true},
	}}
	e := testEngine(dev, clock, func(c *EngineConfig) {
		c.Input = in
		c.Pause = pause
	})

	if err := e.RunManual(context.Background()); err != nil {
		t.Fatalf("RunManual: %v", err)
	}
	if !slices.Equal(dev.velocities, []int{0}) {
		t.Errorf("velocities = %v, want only the final stop", dev.velocities)
	}
}

func TestRunManualCancelled(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.onSleep = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	e := testEngine(dev, clock)

	if err := e.RunManual(ctx); !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}
