// Package tic talks to Pololu Tic stepper motor controllers over their USB
// command port, or over I²C.
package tic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ReadTimeout bounds every variable read.
const ReadTimeout = 100 * time.Millisecond

// maxBlock is the longest variable block a single read may request.
const maxBlock = 15

// ErrNoResponse is returned when the device does not answer a read in time.
var ErrNoResponse = errors.New("tic: no response")

// Dev is a Tic on a serial command port.
type Dev struct {
	mu      sync.Mutex
	port    io.ReadWriteCloser
	product Product
	name    string
}

// Open opens the Tic command port at name, e.g. /dev/ttyACM0.
func Open(name string, product Product) (*Dev, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: 9600})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	d := New(port, product)
	d.name = name
	return d, nil
}

// New wraps an open port. The port must return (0, nil) from Read when its
// read timeout expires, as go.bug.st/serial ports do.
func New(port io.ReadWriteCloser, product Product) *Dev {
	return &Dev{port: port, product: product}
}

// Product returns the Tic model.
func (d *Dev) Product() Product { return d.product }

// Name returns the port name.
func (d *Dev) Name() string { return d.name }

func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.Close()
}

func (d *Dev) send(b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.port.Write(b); err != nil {
		return fmt.Errorf("write 0x%02X: %w", b[0], err)
	}
	return nil
}

// readVars reads n bytes of variables starting at offset, splitting the read
// into blocks the device accepts.
func (d *Dev) readVars(offset, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]byte, 0, n)
	for len(out) < n {
		k := min(n-len(out), maxBlock)
		if _, err := d.port.Write(getVariable(byte(offset+len(out)), byte(k), false)); err != nil {
			return nil, fmt.Errorf("request variables: %w", err)
		}
		buf := make([]byte, k)
		for got := 0; got < k; {
			m, err := d.port.Read(buf[got:])
			if err != nil {
				return nil, fmt.Errorf("read variables: %w", err)
			}
			if m == 0 {
				return nil, ErrNoResponse
			}
			got += m
		}
		out = append(out, buf...)
	}
	return out, nil
}

func (d *Dev) readInt32(offset int) (int32, error) {
	b, err := d.readVars(offset, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (d *Dev) CurrentPosition() (int, error) {
	v, err := d.readInt32(varCurrentPosition)
	return int(v), err
}

func (d *Dev) CurrentVelocity() (int, error) {
	v, err := d.readInt32(varCurrentVelocity)
	return int(v), err
}

// VinVoltage returns the supply voltage in volts.
func (d *Dev) VinVoltage() (float64, error) {
	b, err := d.readVars(varVinVoltage, 2)
	if err != nil {
		return 0, err
	}
	return float64(binary.LittleEndian.Uint16(b)) / 1000, nil
}

// CurrentLimit returns the coil current limit in milliamps, or 0 for models
// whose limit code cannot be converted.
func (d *Dev) CurrentLimit() (int, error) {
	b, err := d.readVars(varCurrentLimit, 1)
	if err != nil {
		return 0, err
	}
	ma, _ := d.product.CurrentLimitMilliamps(b[0])
	return ma, nil
}

// Status reads the whole variable block.
func (d *Dev) Status() (Status, error) {
	b, err := d.readVars(0, statusBlockLen)
	if err != nil {
		return Status{}, err
	}
	return decodeStatus(b), nil
}

func (d *Dev) SetTargetPosition(pos int) error {
	return d.send(thirtyTwo(cmdSetTargetPosition, uint32(int32(pos))))
}

func (d *Dev) SetTargetVelocity(vel int) error {
	return d.send(thirtyTwo(cmdSetTargetVelocity, uint32(int32(vel))))
}

func (d *Dev) HaltAndSetPosition(pos int) error {
	return d.send(thirtyTwo(cmdHaltAndSetPosition, uint32(int32(pos))))
}

func (d *Dev) SetMaxSpeed(speed int) error {
	return d.send(thirtyTwo(cmdSetMaxSpeed, uint32(speed)))
}

func (d *Dev) SetStartingSpeed(speed int) error {
	return d.send(thirtyTwo(cmdSetStartingSpeed, uint32(speed)))
}

func (d *Dev) SetMaxAccel(accel int) error {
	return d.send(thirtyTwo(cmdSetMaxAccel, uint32(accel)))
}

func (d *Dev) SetMaxDecel(decel int) error {
	return d.send(thirtyTwo(cmdSetMaxDecel, uint32(decel)))
}

// SetStepMode selects the microstep mode (0 = full step, 1 = 1/2, ...).
func (d *Dev) SetStepMode(mode byte) error {
	return d.send(seven(cmdSetStepMode, mode))
}

func (d *Dev) HaltAndHold() error         { return d.send(quick(cmdHaltAndHold)) }
func (d *Dev) ResetCommandTimeout() error { return d.send(quick(cmdResetCommandTimeout)) }
func (d *Dev) Energize() error            { return d.send(quick(cmdEnergize)) }
func (d *Dev) Deenergize() error          { return d.send(quick(cmdDeenergize)) }
func (d *Dev) ExitSafeStart() error       { return d.send(quick(cmdExitSafeStart)) }
func (d *Dev) EnterSafeStart() error      { return d.send(quick(cmdEnterSafeStart)) }
func (d *Dev) ClearDriverError() error    { return d.send(quick(cmdClearDriverError)) }
