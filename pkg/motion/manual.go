package motion

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RunManual jogs the axis from the engine input until Quit is pressed or ctx
// is done. Holding JogNegative or JogPositive turns the axis at the current
// jog speed; Stop overrides both. SpeedUp/SpeedDown and AccelUp/AccelDown
// ramp the limits multiplicatively. Zero redefines the current position as 0
// and GoZero moves back to it.
func (e *Engine) RunManual(ctx context.Context) error {
	j := jog{
		speed: clamp(e.set.JogSpeed, e.set.MinSpeed, e.set.Speed),
		accel: e.set.WorkingAccel(),
		decel: e.set.WorkingDecel(),
	}

	e.begin(ModeManual, Unbounded)
	e.log.Info("manual mode started", "speed", j.speed)
	if err := e.dev.SetMaxSpeed(j.speed); err != nil {
		return deviceErr("set max speed", err)
	}

	var edge edges
	var lastAdjust time.Time
	vel := 0
	for {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		now := e.clock.Now()
		if err := e.dev.ResetCommandTimeout(); err != nil {
			return deviceErr("reset command timeout", err)
		}

		if edge.rose(e.input, Quit) {
			e.status("Quit")
			return e.setVelocity(0)
		}
		if edge.rose(e.input, Zero) {
			if err := e.dev.HaltAndSetPosition(0); err != nil {
				return deviceErr("halt and set position", err)
			}
			vel = 0
			e.publish(func(s *Snapshot) { s.TargetVelocity = 0 })
			e.log.Info("position zeroed")
		}
		if edge.rose(e.input, GoZero) {
			e.status("Moving to 0")
			err := e.MoveTo(ctx, 0)
			if errors.Is(err, ErrTimedOut) {
				e.log.Warn("go to zero timed out", "err", err)
			} else if err != nil {
				return err
			}
			// Position mode replaced the velocity command.
			vel = 0
		}

		if now.Sub(lastAdjust) >= e.set.AdjustInterval {
			changed, err := e.adjust(&j)
			if err != nil {
				return err
			}
			if changed {
				lastAdjust = now
			}
		}

		dir := 0
		switch {
		case e.pause.Paused(), e.active(Stop):
		case e.active(JogNegative) && !e.active(JogPositive):
			dir = -1
		case e.active(JogPositive) && !e.active(JogNegative):
			dir = 1
		}
		if want := dir * j.speed; want != vel {
			if err := e.setVelocity(want); err != nil {
				return err
			}
			vel = want
		}
		e.status(jogStatus(dir, j.speed, e.pause.Paused()))

		if err := e.sampler.Poll(); err != nil {
			return err
		}
		if err := e.clock.Sleep(ctx, e.set.Slice); err != nil {
			return ErrCancelled
		}
	}
}

// jog is the live state of a manual session.
type jog struct {
	speed, accel, decel int
}

// adjust applies at most one speed step and one accel step from the input
// and re-issues the limits that changed.
func (e *Engine) adjust(j *jog) (bool, error) {
	speed := j.speed
	switch {
	case e.active(SpeedUp):
		speed = min(e.set.Speed, rampUp(speed))
	case e.active(SpeedDown):
		speed = max(e.set.MinSpeed, rampDown(speed))
	}
	accel, decel := j.accel, j.decel
	switch {
	case e.active(AccelUp):
		accel = min(e.set.MaxAccel, rampUp(accel))
		decel = min(e.set.MaxDecel, rampUp(decel))
	case e.active(AccelDown):
		accel = max(e.set.MinAccel, rampDown(accel))
		decel = max(e.set.MinAccel, rampDown(decel))
	}

	changed := false
	if speed != j.speed {
		if err := e.dev.SetMaxSpeed(speed); err != nil {
			return false, deviceErr("set max speed", err)
		}
		j.speed, changed = speed, true
		e.log.Debug("jog speed changed", "speed", speed)
	}
	if accel != j.accel || decel != j.decel {
		if err := e.dev.SetMaxAccel(accel); err != nil {
			return false, deviceErr("set max accel", err)
		}
		if err := e.dev.SetMaxDecel(decel); err != nil {
			return false, deviceErr("set max decel", err)
		}
		j.accel, j.decel, changed = accel, decel, true
		e.log.Debug("jog accel changed", "accel", accel, "decel", decel)
	}
	return changed, nil
}

func rampUp(v int) int   { return v*6/5 + 1 }
func rampDown(v int) int { return v * 5 / 6 }

func jogStatus(dir, speed int, paused bool) string {
	switch {
	case paused:
		return "Paused"
	case dir < 0:
		return fmt.Sprintf("Jogging - at %d", speed)
	case dir > 0:
		return fmt.Sprintf("Jogging + at %d", speed)
	default:
		return "Stopped"
	}
}
