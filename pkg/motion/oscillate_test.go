package motion

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestRunOscillationTriple(t *testing.T) {
	for _, goal := range []Goal{1, 2, 3, 7} {
		clock := newFakeClock()
		dev := newSim(clock)
		e := testEngine(dev, clock)

		if err := e.RunOscillation(context.Background(), -1100, 1100, goal); err != nil {
			t.Fatalf("goal %d: RunOscillation: %v", goal, err)
		}
		if got, want := len(dev.targets), 3*int(goal)+1; got != want {
			t.Errorf("goal %d: %d position commands, want %d", goal, got, want)
		}
		if dev.targets[len(dev.targets)-1] != 0 {
			t.Errorf("goal %d: final target %d, want 0", goal, dev.targets[len(dev.targets)-1])
		}
		if dev.pos != 0 {
			t.Errorf("goal %d: final position %d, want 0", goal, dev.pos)
		}
		if s := e.tel.Snapshot(); s.Cycles != int(goal) || s.Mode != ModeOscillation {
			t.Errorf("goal %d: snapshot cycles=%d mode=%s", goal, s.Cycles, s.Mode)
		}
	}
}

func TestRunOscillationExample(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	dev.step = 400
	e := testEngine(dev, clock)

	if err := e.RunOscillation(context.Background(), -1100, 1100, 3); err != nil {
		t.Fatalf("RunOscillation: %v", err)
	}
	want := []int{
		1100, -1100, 1100,
		1100, -1100, 1100,
		1100, -1100, 1100,
		0,
	}
	if !slices.Equal(dev.targets, want) {
		t.Errorf("targets = %v, want %v", dev.targets, want)
	}
	if abs(dev.pos) > e.set.Tolerance {
		t.Errorf("final position %d not within tolerance of 0", dev.pos)
	}
}

func TestRunOscillationAnchor(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Settings.Policy = PolicyAnchor })

	if err := e.RunOscillation(context.Background(), -1100, 1100, 2); err != nil {
		t.Fatalf("RunOscillation: %v", err)
	}
	want := []int{1100, -1100, 1100, -1100, 1100, 0}
	if !slices.Equal(dev.targets, want) {
		t.Errorf("targets = %v, want %v", dev.targets, want)
	}
}

func TestRunOscillationDwellKeepsWatchdogFed(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	dev := newSim(clock)
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Settings.Dwell = 300 * time.Millisecond })

	if err := e.RunOscillation(context.Background(), -1100, 1100, 1); err != nil {
		t.Fatalf("RunOscillation: %v", err)
	}
	if gap := dev.maxGap(); gap > e.set.KeepalivePeriod {
		t.Errorf("max refresh gap %s exceeds keepalive period", gap)
	}
	if elapsed := clock.Now().Sub(start); elapsed < 900*time.Millisecond {
		t.Errorf("run took %s, want at least three dwells", elapsed)
	}
}

func TestRunOscillationUnboundedUntilCancelled(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Settings.Dwell = 100 * time.Millisecond })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.onSleep = func(n int) {
		if n == 200 {
			cancel()
		}
	}

	err := e.RunOscillation(ctx, -1100, 1100, Unbounded)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if len(dev.targets) < 6 {
		t.Errorf("only %d legs before cancel", len(dev.targets))
	}
	if slices.Contains(dev.targets, 0) {
		t.Error("cancelled run returned to zero")
	}
}

func TestRunOscillationTimeout(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	dev.position = func() int { return 0 }
	e := testEngine(dev, clock, func(c *EngineConfig) { c.Settings.MoveTimeout = time.Second })

	err := e.RunOscillation(context.Background(), -1100, 1100, 1)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if te.Target != 1100 || te.Last != 0 {
		t.Errorf("TimeoutError = %+v", te)
	}
}

func TestRunOscillationRejectsEqualEndpoints(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	e := testEngine(dev, clock)

	var ce *ConfigError
	if err := e.RunOscillation(context.Background(), 5, 5, 1); !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if len(dev.calls) != 0 {
		t.Errorf("device touched before validation: %v", dev.calls)
	}
}

func TestPrepare(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	dev.pos = 1234
	e := testEngine(dev, clock)

	if err := e.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	for _, op := range []string{"Energize", "ExitSafeStart", "HaltAndSetPosition", "SetStartingSpeed", "SetMaxSpeed", "SetMaxAccel", "SetMaxDecel"} {
		if dev.calls[op] != 1 {
			t.Errorf("%s called %d times, want 1", op, dev.calls[op])
		}
	}
	if dev.pos != 0 {
		t.Errorf("position after prepare = %d, want 0", dev.pos)
	}

	dev.fail["Energize"] = errStub
	dev.fail["SetMaxAccel"] = errStub
	err := e.Prepare()
	if !errors.Is(err, ErrDevice) || !errors.Is(err, errStub) {
		t.Errorf("Prepare with failures = %v, want device error", err)
	}
}
