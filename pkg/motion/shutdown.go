package motion

import (
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"
)

// ShutdownStep is the outcome of one step of the shutdown sequence.
type ShutdownStep struct {
	Name string
	Err  error
}

// ShutdownReport lists every attempted step.
type ShutdownReport struct {
	Steps []ShutdownStep
}

// Err combines the errors of all failed steps, or returns nil.
func (r ShutdownReport) Err() error {
	var err error
	for _, s := range r.Steps {
		if s.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return err
}

// Warnings returns one line per failed step.
func (r ShutdownReport) Warnings() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, fmt.Sprintf("%s: %v", s.Name, s.Err))
		}
	}
	return out
}

// Shutdown brings the device to rest: zero velocity, safe start, then
// de-energize. Each step is attempted even when an earlier one failed or
// panicked. A nil device yields an empty report.
func Shutdown(dev Device) ShutdownReport {
	var r ShutdownReport
	if dev == nil {
		return r
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"set target velocity 0", func() error { return dev.SetTargetVelocity(0) }},
		{"enter safe start", dev.EnterSafeStart},
		{"deenergize", dev.Deenergize},
	}
	for _, s := range steps {
		r.Steps = append(r.Steps, ShutdownStep{Name: s.name, Err: attempt(s.fn)})
	}
	return r
}

func attempt(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

// Safety runs Shutdown at most once for a device session, whichever exit
// path gets there first.
type Safety struct {
	dev    Device
	logger *slog.Logger
	once   sync.Once
	report ShutdownReport
}

func NewSafety(dev Device, logger *slog.Logger) *Safety {
	if logger == nil {
		logger = slog.Default()
	}
	return &Safety{dev: dev, logger: logger}
}

// Shutdown runs the sequence on the first call and returns its report on
// every call. Failed steps are logged as warnings.
func (s *Safety) Shutdown() ShutdownReport {
	s.once.Do(func() {
		s.report = Shutdown(s.dev)
		for _, w := range s.report.Warnings() {
			s.logger.Warn("shutdown step failed", "step", w)
		}
	})
	return s.report
}
