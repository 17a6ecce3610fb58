package rig

import (
	"context"
	"errors"
	"fmt"

	"github.com/gwillem/oscillator/pkg/control"
	"github.com/gwillem/oscillator/pkg/motion"
	"github.com/gwillem/oscillator/pkg/servo"
	"github.com/gwillem/oscillator/pkg/tic"
)

// ErrNotFound is returned when no Tic is attached and no port is configured.
var ErrNotFound = errors.New("no Tic controller found")

// Dialer returns a dialer that opens the configured controller.
func (c *Config) Dialer() control.Dialer {
	cfg := *c
	return func(context.Context) (control.Device, error) {
		dev, err := cfg.Open()
		if err != nil {
			return nil, &motion.DeviceError{Op: "open", Err: err}
		}
		return dev, nil
	}
}

// Open opens the configured controller.
func (c *Config) Open() (control.Device, error) {
	product, _ := tic.ParseProduct(c.Product)

	switch c.Transport {
	case TransportUSB, "":
		port := c.Port
		if port == "" {
			found, err := tic.Find()
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				return nil, ErrNotFound
			}
			port = found[0].Name
			if product == tic.Unknown {
				product = found[0].Product
			}
		}
		return opened(tic.Open(port, product))

	case TransportI2C:
		return opened(tic.OpenI2C(c.I2CBus, product, c.I2CAddr))

	case TransportFeetech:
		return opened(servo.Open(servo.Config{Port: c.Port, ID: c.ServoID}))
	}
	return nil, fmt.Errorf("unknown transport %q", c.Transport)
}

// opened keeps a nil device pointer from turning into a non-nil interface.
func opened[D control.Device](dev D, err error) (control.Device, error) {
	if err != nil {
		return nil, err
	}
	return dev, nil
}
