package motion

import "sync/atomic"

// Mode names the kind of run a session executes.
type Mode string

const (
	ModeIdle        Mode = "idle"
	ModeOscillation Mode = "oscillation"
	ModeContinuous  Mode = "continuous"
	ModeManual      Mode = "manual"
)

// AllModes returns the runnable modes in menu order.
func AllModes() []Mode {
	return []Mode{
		ModeOscillation,
		ModeContinuous,
		ModeManual,
	}
}

// Title is the label shown by presentation layers.
func (m Mode) Title() string {
	switch m {
	case ModeOscillation:
		return "Oscillation"
	case ModeContinuous:
		return "Constant speed"
	case ModeManual:
		return "Manual"
	default:
		return "Idle"
	}
}

// PauseSwitch is a resumable hold flag. The presentation side toggles it and
// the control loops observe it.
type PauseSwitch struct {
	paused atomic.Bool
}

// Toggle flips the switch and returns the new state.
func (p *PauseSwitch) Toggle() bool {
	for {
		old := p.paused.Load()
		if p.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Set forces the switch state.
func (p *PauseSwitch) Set(paused bool) {
	p.paused.Store(paused)
}

// Paused reports the current state. A nil switch is never paused.
func (p *PauseSwitch) Paused() bool {
	return p != nil && p.paused.Load()
}
