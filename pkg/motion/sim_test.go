package motion

import (
	"context"
	"errors"
	"time"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	now     time.Time
	sleeps  int
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps++
	if c.onSleep != nil {
		c.onSleep(c.sleeps)
	}
	return ctx.Err()
}

var errStub = errors.New("stub failure")

// simDevice is an in-memory axis. In position mode it jumps to the target, or
// moves step units per position read when step is set. In velocity mode
// every position read advances by vel/10000.
type simDevice struct {
	clock Clock

	pos      int
	target   int
	vel      int
	velocity bool
	step     int
	position func() int

	targets    []int
	velocities []int
	maxSpeeds  []int
	zeroed     []int
	refreshes  []time.Time
	calls      map[string]int

	fail   map[string]error
	panics map[string]bool

	gaugeReads int
	vin        float64
	limit      int
}

func newSim(clock Clock) *simDevice {
	return &simDevice{
		clock:  clock,
		calls:  make(map[string]int),
		fail:   make(map[string]error),
		panics: make(map[string]bool),
		vin:    24.1,
		limit:  1472,
	}
}

func (d *simDevice) op(name string) error {
	d.calls[name]++
	if d.panics[name] {
		panic(name + " exploded")
	}
	return d.fail[name]
}

func (d *simDevice) CurrentPosition() (int, error) {
	if err := d.op("CurrentPosition"); err != nil {
		return 0, err
	}
	switch {
	case d.position != nil:
		d.pos = d.position()
	case d.velocity:
		d.pos += d.vel / 10000
	case d.step == 0:
		d.pos = d.target
	default:
		delta := d.target - d.pos
		d.pos += clamp(delta, -d.step, d.step)
	}
	return d.pos, nil
}

func (d *simDevice) SetTargetPosition(pos int) error {
	if err := d.op("SetTargetPosition"); err != nil {
		return err
	}
	d.target, d.velocity = pos, false
	d.targets = append(d.targets, pos)
	return nil
}

func (d *simDevice) SetTargetVelocity(vel int) error {
	if err := d.op("SetTargetVelocity"); err != nil {
		return err
	}
	d.vel, d.velocity = vel, true
	d.velocities = append(d.velocities, vel)
	return nil
}

func (d *simDevice) SetMaxSpeed(speed int) error {
	if err := d.op("SetMaxSpeed"); err != nil {
		return err
	}
	d.maxSpeeds = append(d.maxSpeeds, speed)
	return nil
}

func (d *simDevice) SetStartingSpeed(int) error { return d.op("SetStartingSpeed") }
func (d *simDevice) SetMaxAccel(int) error      { return d.op("SetMaxAccel") }
func (d *simDevice) SetMaxDecel(int) error      { return d.op("SetMaxDecel") }
func (d *simDevice) Energize() error            { return d.op("Energize") }
func (d *simDevice) Deenergize() error          { return d.op("Deenergize") }
func (d *simDevice) ExitSafeStart() error       { return d.op("ExitSafeStart") }
func (d *simDevice) EnterSafeStart() error      { return d.op("EnterSafeStart") }

func (d *simDevice) HaltAndSetPosition(pos int) error {
	if err := d.op("HaltAndSetPosition"); err != nil {
		return err
	}
	d.pos, d.target, d.vel = pos, pos, 0
	d.zeroed = append(d.zeroed, pos)
	return nil
}

func (d *simDevice) HaltAndHold() error {
	if err := d.op("HaltAndHold"); err != nil {
		return err
	}
	d.target, d.vel = d.pos, 0
	return nil
}

func (d *simDevice) ResetCommandTimeout() error {
	if err := d.op("ResetCommandTimeout"); err != nil {
		return err
	}
	d.refreshes = append(d.refreshes, d.clock.Now())
	return nil
}

func (d *simDevice) CurrentVelocity() (int, error) {
	d.gaugeReads++
	return d.vel, d.op("CurrentVelocity")
}

func (d *simDevice) VinVoltage() (float64, error) { return d.vin, d.op("VinVoltage") }
func (d *simDevice) CurrentLimit() (int, error)   { return d.limit, d.op("CurrentLimit") }

// maxGap returns the longest interval between consecutive watchdog refreshes.
func (d *simDevice) maxGap() time.Duration {
	var gap time.Duration
	for i := 1; i < len(d.refreshes); i++ {
		gap = max(gap, d.refreshes[i].Sub(d.refreshes[i-1]))
	}
	return gap
}

// scriptInput plays back one set of active actions per clock sleep.
type scriptInput struct {
	clock  *fakeClock
	frames []map[Action]bool
}

func (s *scriptInput) Active(a Action) bool {
	if len(s.frames) == 0 {
		return false
	}
	i := min(s.clock.sleeps, len(s.frames)-1)
	return s.frames[i][a]
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Dwell = 0
	return s
}

func testEngine(dev Device, clock Clock, mods ...func(*EngineConfig)) *Engine {
	cfg := EngineConfig{
		Device:    dev,
		Settings:  testSettings(),
		Clock:     clock,
		Pause:     &PauseSwitch{},
		Telemetry: NewTelemetry(),
	}
	for _, m := range mods {
		m(&cfg)
	}
	return NewEngine(cfg)
}
