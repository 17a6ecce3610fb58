package motion

import (
	"context"
	"log/slog"

	"go.uber.org/multierr"
)

// EngineConfig wires an Engine to its collaborators. Only Device is
// required.
type EngineConfig struct {
	Device    Device
	Settings  Settings
	Clock     Clock
	Pause     *PauseSwitch
	Telemetry *Telemetry
	Input     Input
	Logger    *slog.Logger
}

// Engine runs one motion mode at a time on a device it owns exclusively.
type Engine struct {
	dev     Device
	set     Settings
	clock   Clock
	pause   *PauseSwitch
	tel     *Telemetry
	input   Input
	log     *slog.Logger
	sampler *Sampler
	waiter  Waiter
	lastPos int
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		dev:   cfg.Device,
		set:   cfg.Settings,
		clock: cfg.Clock,
		pause: cfg.Pause,
		tel:   cfg.Telemetry,
		input: cfg.Input,
		log:   cfg.Logger,
	}
	if e.clock == nil {
		e.clock = SystemClock
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.sampler = NewSampler(e.dev, e.tel, e.clock, e.set.SampleInterval)
	e.waiter = Waiter{
		Tolerance:       e.set.Tolerance,
		Timeout:         e.set.MoveTimeout,
		KeepalivePeriod: e.set.KeepalivePeriod,
		Slice:           e.set.Slice,
		Clock:           e.clock,
		Pause:           e.pause,
		Observe: func(pos int) {
			e.lastPos = pos
			e.sampler.Position(pos)
		},
	}
	return e
}

// Settings returns the settings the engine was built with.
func (e *Engine) Settings() Settings { return e.set }

// Prepare powers the device up and applies the session limits. The current
// position becomes 0.
func (e *Engine) Prepare() error {
	err := multierr.Combine(
		e.dev.Energize(),
		e.dev.ExitSafeStart(),
		e.dev.HaltAndSetPosition(0),
		e.dev.SetStartingSpeed(e.set.StartingSpeed),
		e.dev.SetMaxSpeed(e.set.Speed),
		e.dev.SetMaxAccel(e.set.WorkingAccel()),
		e.dev.SetMaxDecel(e.set.WorkingDecel()),
	)
	if err != nil {
		return deviceErr("prepare", err)
	}
	e.lastPos = 0
	e.publish(func(s *Snapshot) {
		s.Position = 0
		s.TargetVelocity = 0
		s.Connected = true
		s.Error = ""
	})
	return nil
}

// MoveTo commands target and waits for the device to reach it.
func (e *Engine) MoveTo(ctx context.Context, target int) error {
	if err := e.dev.SetTargetPosition(target); err != nil {
		return deviceErr("set target position", err)
	}
	return e.waiter.WaitUntil(ctx, e.dev, target)
}

// dwell holds still for the configured dwell time, keeping the watchdog fed.
// Time spent paused does not count.
func (e *Engine) dwell(ctx context.Context) error {
	wd := watchdog{dev: e.dev, period: e.set.KeepalivePeriod}
	left := e.set.Dwell
	for left > 0 {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		now := e.clock.Now()
		if err := wd.feed(now); err != nil {
			return err
		}
		d := min(wd.nap(now, e.set.Slice), left)
		if err := e.clock.Sleep(ctx, d); err != nil {
			return ErrCancelled
		}
		if !e.pause.Paused() {
			left -= d
		}
	}
	return nil
}

func (e *Engine) setVelocity(v int) error {
	if err := e.dev.SetTargetVelocity(v); err != nil {
		return deviceErr("set target velocity", err)
	}
	e.publish(func(s *Snapshot) { s.TargetVelocity = v })
	return nil
}

func (e *Engine) active(a Action) bool {
	return e.input != nil && e.input.Active(a)
}

func (e *Engine) publish(fn func(s *Snapshot)) {
	if e.tel != nil {
		e.tel.Update(fn)
	}
}

func (e *Engine) status(msg string) {
	e.publish(func(s *Snapshot) { s.Status = msg })
}

func (e *Engine) begin(mode Mode, goal Goal) {
	e.publish(func(s *Snapshot) {
		s.Mode = mode
		s.Cycles = 0
		s.Goal = goal
		s.Running = true
		s.Error = ""
	})
}

func (e *Engine) counted(n int, goal Goal) {
	e.publish(func(s *Snapshot) { s.Cycles = n })
	e.log.Info("cycle complete", "cycles", n, "goal", goal.String())
}
