// Package motion drives a single stepper axis: position waits that keep the
// command watchdog fed, cycle counting, manual jogging and the safety
// shutdown sequence.
package motion

// Device is a single-axis motion controller.
//
// A Device is owned by exactly one goroutine for the duration of a session.
// Implementations do not need to be safe for concurrent use.
type Device interface {
	CurrentPosition() (int, error)
	SetTargetPosition(pos int) error
	SetTargetVelocity(vel int) error

	SetMaxSpeed(speed int) error
	SetStartingSpeed(speed int) error
	SetMaxAccel(accel int) error
	SetMaxDecel(decel int) error

	Energize() error
	Deenergize() error
	ExitSafeStart() error
	EnterSafeStart() error

	HaltAndSetPosition(pos int) error
	HaltAndHold() error
	ResetCommandTimeout() error
}

// Gauges is implemented by devices that expose analog readouts.
type Gauges interface {
	CurrentVelocity() (int, error)
	// VinVoltage returns the supply voltage in volts.
	VinVoltage() (float64, error)
	// CurrentLimit returns the coil current limit in milliamps.
	CurrentLimit() (int, error)
}
