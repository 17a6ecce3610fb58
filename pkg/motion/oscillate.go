package motion

import (
	"context"
	"fmt"
)

// RunOscillation moves back and forth between x1 and x2, starting with the
// endpoint nearer to the current position, until goal cycles are counted by
// the configured policy. A bounded run ends with a move back to 0.
//
// It returns nil on completion, ErrCancelled when ctx is done, or the
// *TimeoutError / *DeviceError that aborted the run.
func (e *Engine) RunOscillation(ctx context.Context, x1, x2 int, goal Goal) error {
	if x1 == x2 {
		return &ConfigError{Field: "x1/x2", Reason: "endpoints must differ"}
	}
	pos, err := e.dev.CurrentPosition()
	if err != nil {
		return deviceErr("get current position", err)
	}
	e.lastPos = pos

	first, other := StartTargets(pos, x1, x2)
	policy := NewLegPolicy(e.set.Policy, first, other)
	e.begin(ModeOscillation, goal)
	e.log.Info("oscillation started", "first", first, "other", other, "goal", goal.String(), "policy", e.set.Policy)

	for !goal.Reached(policy.Cycles()) {
		target := policy.Next()
		e.status(fmt.Sprintf("Moving to %d", target))
		if err := e.MoveTo(ctx, target); err != nil {
			return err
		}
		e.status(fmt.Sprintf("Dwell at %d", target))
		if err := e.dwell(ctx); err != nil {
			return err
		}
		if policy.Observe(e.lastPos) {
			e.counted(policy.Cycles(), goal)
		}
	}

	e.status("Returning to 0")
	if err := e.MoveTo(ctx, 0); err != nil {
		return err
	}
	e.status(fmt.Sprintf("Done: %d cycles", policy.Cycles()))
	e.log.Info("oscillation finished", "cycles", policy.Cycles())
	return nil
}
