package motion

import (
	"context"
	"fmt"
	"time"
)

// RunConstantSpeed turns the axis at a constant velocity and counts output
// revolutions until goal is reached. The sign of speed picks the direction.
// SpeedUp and SpeedDown input actions change the speed without resetting the
// count; pause stops the axis and resume restores the current speed.
func (e *Engine) RunConstantSpeed(ctx context.Context, speed int, goal Goal) error {
	if abs(speed) < e.set.MinSpeed || abs(speed) > e.set.Speed {
		return &ConfigError{
			Field:  "rotation_speed",
			Reason: fmt.Sprintf("%d outside ±[%d, %d]", speed, e.set.MinSpeed, e.set.Speed),
		}
	}

	counter := NewRotationModulo(e.set.StepsPerRev, speed < 0)
	wd := watchdog{dev: e.dev, period: e.set.KeepalivePeriod}
	e.begin(ModeContinuous, goal)
	e.log.Info("constant speed started", "speed", speed, "goal", goal.String())

	if err := wd.feed(e.clock.Now()); err != nil {
		return err
	}
	if err := e.setVelocity(speed); err != nil {
		return err
	}
	e.status(fmt.Sprintf("Rotating at %d", speed))

	held := false
	var lastAdjust time.Time
	for {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		now := e.clock.Now()
		if err := wd.feed(now); err != nil {
			return err
		}

		if e.pause.Paused() {
			if !held {
				if err := e.setVelocity(0); err != nil {
					return err
				}
				held = true
				e.status("Paused")
			}
		} else {
			if held {
				if err := e.setVelocity(speed); err != nil {
					return err
				}
				held = false
				e.status(fmt.Sprintf("Rotating at %d", speed))
			}
			if now.Sub(lastAdjust) >= e.set.AdjustInterval {
				next := speed
				if e.active(SpeedUp) {
					next = e.stepSpeed(speed, 1)
				} else if e.active(SpeedDown) {
					next = e.stepSpeed(speed, -1)
				}
				if next != speed {
					if err := e.setVelocity(next); err != nil {
						return err
					}
					speed, lastAdjust = next, now
					e.status(fmt.Sprintf("Rotating at %d", speed))
				}
			}
		}

		pos, err := e.dev.CurrentPosition()
		if err != nil {
			return deviceErr("get current position", err)
		}
		e.sampler.Position(pos)
		if counter.Observe(pos) {
			e.counted(counter.Cycles(), goal)
			if goal.Reached(counter.Cycles()) {
				if err := e.setVelocity(0); err != nil {
					return err
				}
				e.status(fmt.Sprintf("Done: %d revolutions", counter.Cycles()))
				return nil
			}
		}

		if err := e.clock.Sleep(ctx, wd.nap(now, e.set.Slice)); err != nil {
			return ErrCancelled
		}
	}
}

// stepSpeed moves the magnitude of v by one SpeedStepPercent of the speed
// ceiling in direction dir, clamped to [MinSpeed, Speed]. The sign of v is
// kept.
func (e *Engine) stepSpeed(v, dir int) int {
	step := max(e.set.Speed*e.set.SpeedStepPercent/100, 1)
	mag := clamp(abs(v)+dir*step, e.set.MinSpeed, e.set.Speed)
	if v < 0 {
		return -mag
	}
	return mag
}
