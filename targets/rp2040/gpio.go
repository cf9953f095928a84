//go:build rp2040

package main

import (
	"errors"
	"machine"

	"hallbldc/bldc"
	"hallbldc/core"
)

var errPinRange = errors.New("gpio: pin out of range")

// RPGPIODriver implements the GPIODriver interface for RP2040
type RPGPIODriver struct {
	// Track configured pins to prevent conflicts
	configured [30]bool
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{}
}

// ConfigureInput configures a pin as a digital input
func (d *RPGPIODriver) ConfigureInput(pin core.GPIOPin, pull core.Pull) error {
	if pin >= core.GPIOPin(len(d.configured)) {
		return errPinRange
	}
	if d.configured[pin] {
		return nil
	}

	mode := machine.PinInput
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	}
	// RP2040 pins map directly to GPIO numbers
	machine.Pin(pin).Configure(machine.PinConfig{Mode: mode})
	d.configured[pin] = true
	return nil
}

// ReadPin reads the pin without bookkeeping, so it is safe in interrupts
func (d *RPGPIODriver) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}

// WatchHall attaches the hall edge interrupt of one motor to all three
// of its sensor pins
func WatchHall(side bldc.Side, pins [3]core.GPIOPin) error {
	handler := func(machine.Pin) {
		UpdateSystemTime()
		bldc.HallISRCallback(side)
	}
	for _, pin := range pins {
		err := machine.Pin(pin).SetInterrupt(machine.PinToggle, handler)
		if err != nil {
			return err
		}
	}
	return nil
}
