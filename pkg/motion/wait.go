package motion

import (
	"context"
	"time"
)

// Waiter blocks until a device reports a position within tolerance of a
// target, refreshing the device command watchdog while it waits.
type Waiter struct {
	Tolerance       int
	Timeout         time.Duration
	KeepalivePeriod time.Duration
	// Slice is the pause between position samples. It must be shorter than
	// KeepalivePeriod.
	Slice time.Duration

	Clock Clock
	Pause *PauseSwitch
	// Observe receives every position sample.
	Observe func(pos int)
}

// WaitUntil waits for dev to reach target.
//
// It returns nil on arrival, a *TimeoutError once the deadline has passed
// with the position still out of tolerance, ErrCancelled when ctx is done,
// or a *DeviceError. While the pause switch is set the motor is held, the
// watchdog keeps being refreshed and the deadline is suspended; on resume the
// target is commanded again.
func (w *Waiter) WaitUntil(ctx context.Context, dev Device, target int) error {
	clock := w.Clock
	if clock == nil {
		clock = SystemClock
	}

	deadline := clock.Now().Add(w.Timeout)
	wd := watchdog{dev: dev, period: w.KeepalivePeriod}
	holding := false
	var pausedAt time.Time

	for {
		if ctx.Err() != nil {
			return ErrCancelled
		}

		now := clock.Now()
		if err := wd.feed(now); err != nil {
			return err
		}

		if w.Pause.Paused() {
			if !holding {
				if err := dev.HaltAndHold(); err != nil {
					return deviceErr("halt and hold", err)
				}
				holding, pausedAt = true, now
			}
			if err := clock.Sleep(ctx, wd.nap(now, w.Slice)); err != nil {
				return ErrCancelled
			}
			continue
		}
		if holding {
			deadline = deadline.Add(now.Sub(pausedAt))
			if err := dev.SetTargetPosition(target); err != nil {
				return deviceErr("set target position", err)
			}
			holding = false
		}

		pos, err := dev.CurrentPosition()
		if err != nil {
			return deviceErr("get current position", err)
		}
		if w.Observe != nil {
			w.Observe(pos)
		}
		if abs(pos-target) <= w.Tolerance {
			return nil
		}
		if !now.Before(deadline) {
			return &TimeoutError{Target: target, Last: pos, Timeout: w.Timeout}
		}

		d := wd.nap(now, w.Slice)
		if rem := deadline.Sub(now); rem < d {
			d = rem
		}
		if err := clock.Sleep(ctx, d); err != nil {
			return ErrCancelled
		}
	}
}

// watchdog refreshes the device command timeout no less often than period.
type watchdog struct {
	dev    Device
	period time.Duration
	last   time.Time
	fed    bool
}

// feed refreshes the watchdog when a refresh is due at now.
func (w *watchdog) feed(now time.Time) error {
	if w.fed && now.Sub(w.last) < w.period {
		return nil
	}
	if err := w.dev.ResetCommandTimeout(); err != nil {
		return deviceErr("reset command timeout", err)
	}
	w.last, w.fed = now, true
	return nil
}

// nap returns slice, cut short so the next refresh is not overslept.
func (w *watchdog) nap(now time.Time, slice time.Duration) time.Duration {
	d := slice
	if due := w.last.Add(w.period).Sub(now); due < d {
		d = due
	}
	return max(d, 0)
}
