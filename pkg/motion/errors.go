package motion

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimedOut matches a *TimeoutError.
	ErrTimedOut = errors.New("position not reached before deadline")
	// ErrCancelled is returned when a run is stopped from outside.
	ErrCancelled = errors.New("run cancelled")
	// ErrDevice matches a *DeviceError.
	ErrDevice = errors.New("device error")
)

// ConfigError reports an invalid setting. It is returned before any device
// I/O takes place.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TimeoutError reports a move that did not reach its target in time.
type TimeoutError struct {
	Target  int
	Last    int
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("target %d not reached within %s (position %d)", e.Target, e.Timeout, e.Last)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimedOut
}

// DeviceError wraps an I/O or protocol failure of the motion device.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func (e *DeviceError) Is(target error) bool {
	return target == ErrDevice
}

func deviceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return err
	}
	return &DeviceError{Op: op, Err: err}
}
