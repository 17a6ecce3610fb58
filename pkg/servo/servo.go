// Package servo drives a Feetech STS bus servo as a single motion axis, for
// bench testing the control loops without a stepper rig.
package servo

import (
	"context"
	"fmt"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

const (
	// DefaultBaudRate is the factory baud rate of STS servos.
	DefaultBaudRate = 1_000_000
	// DefaultVelocityScale converts Tic velocity units to servo velocity units.
	DefaultVelocityScale = 10_000

	maxRaw = 4095
)

// Config holds configuration for the servo axis.
type Config struct {
	Port     string
	ID       int
	BaudRate int
	// VelocityScale is the number of Tic velocity units per servo velocity
	// unit.
	VelocityScale int
	Timeout       time.Duration
}

// Dev is a servo axis. Positions are raw servo steps relative to the last
// HaltAndSetPosition. Limits, the command watchdog and safe start have no
// servo counterpart and are accepted without effect.
type Dev struct {
	bus     *feetech.Bus
	servo   *feetech.Servo
	scale   int
	timeout time.Duration

	offset    int
	velocity  bool
	modeKnown bool
	energized bool
}

// Open opens the bus and addresses the servo.
func Open(cfg Config) (*Dev, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.VelocityScale <= 0 {
		cfg.VelocityScale = DefaultVelocityScale
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	return &Dev{
		bus:     bus,
		servo:   feetech.NewServo(bus, cfg.ID, nil),
		scale:   cfg.VelocityScale,
		timeout: cfg.Timeout,
	}, nil
}

// Scan lists the servos answering on port with ids lo..hi.
func Scan(ctx context.Context, port string, lo, hi int) ([]feetech.FoundServo, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: DefaultBaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()
	return bus.Scan(ctx, lo, hi)
}

func (d *Dev) Close() error {
	return d.bus.Close()
}

func (d *Dev) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 4*d.timeout)
}

// setMode switches between position and wheel mode. The servo only accepts
// a mode change with torque off.
func (d *Dev) setMode(velocity bool) error {
	if d.modeKnown && d.velocity == velocity {
		return nil
	}
	ctx, cancel := d.ctx()
	defer cancel()

	if err := d.servo.Disable(ctx); err != nil {
		return fmt.Errorf("disable for mode change: %w", err)
	}
	mode := feetech.ModePosition
	if velocity {
		mode = feetech.ModeVelocity
	}
	if err := d.servo.SetOperatingMode(ctx, mode); err != nil {
		return fmt.Errorf("set operating mode: %w", err)
	}
	d.velocity, d.modeKnown = velocity, true
	if d.energized {
		if err := d.servo.Enable(ctx); err != nil {
			return fmt.Errorf("enable after mode change: %w", err)
		}
	}
	return nil
}

func (d *Dev) raw() (int, error) {
	ctx, cancel := d.ctx()
	defer cancel()
	return d.servo.Position(ctx)
}

func (d *Dev) CurrentPosition() (int, error) {
	raw, err := d.raw()
	if err != nil {
		return 0, fmt.Errorf("read position: %w", err)
	}
	return raw - d.offset, nil
}

func (d *Dev) SetTargetPosition(pos int) error {
	if err := d.setMode(false); err != nil {
		return err
	}
	ctx, cancel := d.ctx()
	defer cancel()
	return d.servo.SetPosition(ctx, min(max(pos+d.offset, 0), maxRaw))
}

func (d *Dev) SetTargetVelocity(vel int) error {
	if vel == 0 && !d.velocity {
		// Already holding a position.
		return nil
	}
	if err := d.setMode(true); err != nil {
		return err
	}
	ctx, cancel := d.ctx()
	defer cancel()
	return d.servo.SetVelocity(ctx, vel/d.scale)
}

// HaltAndSetPosition holds the servo where it is and makes that position pos.
func (d *Dev) HaltAndSetPosition(pos int) error {
	if err := d.HaltAndHold(); err != nil {
		return err
	}
	raw, err := d.raw()
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	d.offset = raw - pos
	return nil
}

func (d *Dev) HaltAndHold() error {
	if err := d.setMode(false); err != nil {
		return err
	}
	raw, err := d.raw()
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	ctx, cancel := d.ctx()
	defer cancel()
	return d.servo.SetPosition(ctx, raw)
}

func (d *Dev) Energize() error {
	ctx, cancel := d.ctx()
	defer cancel()
	if err := d.servo.Enable(ctx); err != nil {
		return err
	}
	d.energized = true
	return nil
}

func (d *Dev) Deenergize() error {
	ctx, cancel := d.ctx()
	defer cancel()
	if err := d.servo.Disable(ctx); err != nil {
		return err
	}
	d.energized = false
	return nil
}

func (d *Dev) SetMaxSpeed(int) error      { return nil }
func (d *Dev) SetStartingSpeed(int) error { return nil }
func (d *Dev) SetMaxAccel(int) error      { return nil }
func (d *Dev) SetMaxDecel(int) error      { return nil }
func (d *Dev) ExitSafeStart() error       { return nil }
func (d *Dev) EnterSafeStart() error      { return nil }
func (d *Dev) ResetCommandTimeout() error { return nil }
