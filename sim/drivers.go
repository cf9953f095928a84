package sim

import (
	"errors"

	"hallbldc/core"
)

// DefaultPWMTop matches a 31.25kHz carrier on a 125MHz RP2040
const DefaultPWMTop = 4000

var ErrPinUnconfigured = errors.New("pin not configured")

// PWMDriver records duty values per pin
type PWMDriver struct {
	Top    uint32
	duty   map[core.PWMPin]core.PWMValue
	cycle  map[core.PWMPin]uint32
	Writes uint64
}

func NewPWMDriver() *PWMDriver {
	return &PWMDriver{
		Top:   DefaultPWMTop,
		duty:  make(map[core.PWMPin]core.PWMValue),
		cycle: make(map[core.PWMPin]uint32),
	}
}

func (d *PWMDriver) ConfigureHardwarePWM(pin core.PWMPin, cycleTicks uint32) (uint32, error) {
	d.duty[pin] = 0
	d.cycle[pin] = cycleTicks
	return cycleTicks, nil
}

func (d *PWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	if _, ok := d.cycle[pin]; !ok {
		return ErrPinUnconfigured
	}
	if uint32(value) > d.Top {
		value = core.PWMValue(d.Top)
	}
	d.duty[pin] = value
	d.Writes++
	return nil
}

func (d *PWMDriver) GetMaxValue() uint32 {
	return d.Top
}

// Duty returns the last value written to pin
func (d *PWMDriver) Duty(pin core.PWMPin) core.PWMValue {
	return d.duty[pin]
}

// PinMode is how a simulated GPIO is configured
type PinMode uint8

const (
	PinUnused PinMode = iota
	PinFloating
	PinPullUp
	PinPullDown
)

type hallInput struct {
	rotor *Rotor
	bit   uint
}

// GPIODriver serves hall inputs from rotors; unattached pins read their bias
type GPIODriver struct {
	modes map[core.GPIOPin]PinMode
	hall  map[core.GPIOPin]hallInput
}

func NewGPIODriver() *GPIODriver {
	return &GPIODriver{
		modes: make(map[core.GPIOPin]PinMode),
		hall:  make(map[core.GPIOPin]hallInput),
	}
}

func (d *GPIODriver) attach(pin core.GPIOPin, r *Rotor, bit uint) {
	d.hall[pin] = hallInput{rotor: r, bit: bit}
}

func (d *GPIODriver) ConfigureInput(pin core.GPIOPin, pull core.Pull) error {
	switch pull {
	case core.PullUp:
		d.modes[pin] = PinPullUp
	case core.PullDown:
		d.modes[pin] = PinPullDown
	default:
		d.modes[pin] = PinFloating
	}
	return nil
}

func (d *GPIODriver) ReadPin(pin core.GPIOPin) bool {
	if h, ok := d.hall[pin]; ok {
		return h.rotor.code&(1<<h.bit) != 0
	}
	return d.modes[pin] == PinPullUp
}

// Mode returns how pin was configured
func (d *GPIODriver) Mode(pin core.GPIOPin) PinMode {
	return d.modes[pin]
}

// GateDriver tracks bridge enables
type GateDriver struct {
	enabled map[uint8]bool
	Toggles uint32
}

func NewGateDriver() *GateDriver {
	return &GateDriver{enabled: make(map[uint8]bool)}
}

func (d *GateDriver) Init(bridge uint8) error {
	d.enabled[bridge] = false
	return nil
}

func (d *GateDriver) SetEnabled(bridge uint8, enabled bool) {
	if d.enabled[bridge] != enabled {
		d.Toggles++
	}
	d.enabled[bridge] = enabled
}

func (d *GateDriver) GetName() string {
	return "sim"
}

// Enabled reports whether a bridge is driving its phases
func (d *GateDriver) Enabled(bridge uint8) bool {
	return d.enabled[bridge]
}
