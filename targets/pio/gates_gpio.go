//go:build rp2040

package pio

import (
	"device/rp"
	"machine"
)

// GPIOGateDriver implements core.GateDriver with direct SIO writes.
// This is the fallback when no PIO state machine is free.
type GPIOGateDriver struct {
	basePin machine.Pin
	masks   [maxBridges]uint32 // all three enable pins of a bridge
	ready   [maxBridges]bool
}

// NewGPIOGateDriver creates a GPIO gate driver with the same pin layout
// as the PIO driver
func NewGPIOGateDriver(basePin uint8) *GPIOGateDriver {
	return &GPIOGateDriver{basePin: machine.Pin(basePin)}
}

// Init configures the enable pins of a bridge as low outputs
func (d *GPIOGateDriver) Init(bridge uint8) error {
	if bridge >= maxBridges {
		return errBadBridge
	}
	pin := d.basePin + machine.Pin(3*bridge)

	d.masks[bridge] = 0
	for i := machine.Pin(0); i < 3; i++ {
		p := pin + i
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
		d.masks[bridge] |= 1 << uint32(p)
	}
	d.ready[bridge] = true
	return nil
}

// SetEnabled switches all three enables with one SIO write
func (d *GPIOGateDriver) SetEnabled(bridge uint8, enabled bool) {
	if bridge >= maxBridges || !d.ready[bridge] {
		return
	}
	if enabled {
		rp.SIO.GPIO_OUT_SET.Set(d.masks[bridge])
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(d.masks[bridge])
	}
}

// GetName returns the backend name
func (d *GPIOGateDriver) GetName() string {
	return "GPIO"
}
