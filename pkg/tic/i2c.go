package tic

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	ptic "periph.io/x/devices/v3/tic"
	"periph.io/x/host/v3"

	"github.com/gwillem/oscillator/pkg/motion"
)

var (
	_ motion.Device = (*I2CDev)(nil)
	_ motion.Gauges = (*I2CDev)(nil)
)

// DefaultI2CAddr is the factory I²C address of a Tic.
const DefaultI2CAddr = ptic.I2CAddr

var i2cVariants = map[Product]ptic.Variant{
	T500:    ptic.TicT500,
	T825:    ptic.TicT825,
	N825:    ptic.TicT825,
	T834:    ptic.TicT834,
	T249:    ptic.TicT249,
	Tic36v4: ptic.Tic36v4,
}

// I2CDev is a Tic wired to an I²C bus.
type I2CDev struct {
	bus     i2c.BusCloser
	dev     *ptic.Dev
	product Product
}

// OpenI2C opens the Tic at addr on the named I²C bus ("" for the first
// bus found).
func OpenI2C(busName string, product Product, addr uint16) (*I2CDev, error) {
	variant, ok := i2cVariants[product]
	if !ok {
		return nil, fmt.Errorf("unsupported I²C model %s", product)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open I²C bus %q: %w", busName, err)
	}
	if addr == 0 {
		addr = DefaultI2CAddr
	}
	dev, err := ptic.NewI2C(bus, variant, addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open %s at 0x%02X: %w", product, addr, err)
	}
	return &I2CDev{bus: bus, dev: dev, product: product}, nil
}

func (d *I2CDev) Close() error { return d.bus.Close() }

func (d *I2CDev) CurrentPosition() (int, error) {
	v, err := d.dev.GetCurrentPosition()
	return int(v), err
}

func (d *I2CDev) CurrentVelocity() (int, error) {
	v, err := d.dev.GetCurrentVelocity()
	return int(v), err
}

func (d *I2CDev) VinVoltage() (float64, error) {
	v, err := d.dev.GetVoltageIn()
	return float64(v) / float64(physic.Volt), err
}

func (d *I2CDev) CurrentLimit() (int, error) {
	c, err := d.dev.GetCurrentLimit()
	return int(c / physic.MilliAmpere), err
}

func (d *I2CDev) SetTargetPosition(pos int) error  { return d.dev.SetTargetPosition(int32(pos)) }
func (d *I2CDev) SetTargetVelocity(vel int) error  { return d.dev.SetTargetVelocity(int32(vel)) }
func (d *I2CDev) HaltAndSetPosition(pos int) error { return d.dev.HaltAndSetPosition(int32(pos)) }
func (d *I2CDev) SetMaxSpeed(speed int) error      { return d.dev.SetMaxSpeed(uint32(speed)) }
func (d *I2CDev) SetStartingSpeed(speed int) error { return d.dev.SetStartingSpeed(uint32(speed)) }
func (d *I2CDev) SetMaxAccel(accel int) error      { return d.dev.SetMaxAccel(uint32(accel)) }
func (d *I2CDev) SetMaxDecel(decel int) error      { return d.dev.SetMaxDecel(uint32(decel)) }
func (d *I2CDev) HaltAndHold() error               { return d.dev.HaltAndHold() }
func (d *I2CDev) ResetCommandTimeout() error       { return d.dev.ResetCommandTimeout() }
func (d *I2CDev) Energize() error                  { return d.dev.Energize() }
func (d *I2CDev) Deenergize() error                { return d.dev.Deenergize() }
func (d *I2CDev) ExitSafeStart() error             { return d.dev.ExitSafeStart() }
func (d *I2CDev) EnterSafeStart() error            { return d.dev.EnterSafeStart() }
