package control

import (
	"errors"

	"github.com/gwillem/oscillator/pkg/motion"
)

// ErrBusy is returned when a run is started while another is active.
var ErrBusy = errors.New("a run is already active")

// Command is a request from a presentation layer to the control goroutine.
type Command interface {
	command()
}

// StartOscillation runs back and forth between X1 and X2.
type StartOscillation struct {
	X1, X2 int
	Cycles motion.Goal
}

// StartContinuous turns at Speed (signed) until Cycles revolutions.
type StartContinuous struct {
	Speed  int
	Cycles motion.Goal
}

// StartManual jogs from the controller key latch until Quit.
type StartManual struct{}

// Stop cancels the active or queued run.
type Stop struct{}

// TogglePause holds or resumes the active run.
type TogglePause struct{}

func (StartOscillation) command() {}
func (StartContinuous) command()  {}
func (StartManual) command()      {}
func (Stop) command()             {}
func (TogglePause) command()      {}

func modeOf(cmd Command) motion.Mode {
	switch cmd.(type) {
	case StartOscillation:
		return motion.ModeOscillation
	case StartContinuous:
		return motion.ModeContinuous
	case StartManual:
		return motion.ModeManual
	}
	return motion.ModeIdle
}

// validate checks a start command against the session settings before any
// device I/O.
func validate(s motion.Settings, lim motion.DeviceLimits, cmd Command) error {
	switch cmd := cmd.(type) {
	case StartOscillation:
		s.X1, s.X2, s.Cycles = cmd.X1, cmd.X2, cmd.Cycles
	case StartContinuous:
		s.RotationSpeed, s.Cycles = cmd.Speed, cmd.Cycles
	}
	return s.Validate(lim)
}
