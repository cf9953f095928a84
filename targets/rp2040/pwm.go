//go:build rp2040

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/servo"

	"hallbldc/core"
)

var errPinNotPWM = errors.New("pwm: pin not configured")

// RP2040PWMDriver implements the PWMDriver interface for RP2040
// Leverages RP2040's 8 hardware PWM slices with 2 channels each
type RP2040PWMDriver struct {
	// Per pin channel, indexed by GPIO number
	channels   [30]uint8
	configured [30]bool

	// Configured slices, indexed by slice number
	// servo.PWM abstracts over TinyGo's unexported *pwmGroup type
	peripherals [8]servo.PWM

	top uint32 // compare value for 100% duty, shared by all slices
}

// NewRP2040PWMDriver creates a new RP2040 PWM driver
func NewRP2040PWMDriver() *RP2040PWMDriver {
	return &RP2040PWMDriver{}
}

// GetMaxValue returns the compare value for 100% duty
func (d *RP2040PWMDriver) GetMaxValue() uint32 {
	return d.top
}

// ConfigureHardwarePWM configures a pin for hardware PWM output
// cycleTicks is in core timer ticks (1MHz)
func (d *RP2040PWMDriver) ConfigureHardwarePWM(pin core.PWMPin, cycleTicks uint32) (uint32, error) {
	pinNum := uint32(pin)
	if pinNum >= uint32(len(d.channels)) {
		return 0, errPinNotPWM
	}

	// GPIO pin N maps to slice (N >> 1) & 0x7, channel N & 1
	sliceNum := uint8((pinNum >> 1) & 0x7)

	pwm := d.peripherals[sliceNum]
	if pwm == nil {
		pwm = getPWMPeripheral(sliceNum)
		d.peripherals[sliceNum] = pwm
	}

	period := uint64(cycleTicks) * 1000000000 / core.TimerFreq
	err := pwm.Configure(machine.PWMConfig{
		Period: period,
	})
	if err != nil {
		return 0, err
	}

	channel, err := pwm.Channel(machine.Pin(pinNum))
	if err != nil {
		return 0, err
	}
	pwm.Set(channel, 0)

	d.channels[pinNum] = channel
	d.configured[pinNum] = true
	d.top = pwm.Top()

	return cycleTicks, nil
}

// SetDutyCycle sets the compare value of a pin
// Called from the duty tick, so no allocation and no blocking
func (d *RP2040PWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	pinNum := uint32(pin)
	if pinNum >= uint32(len(d.channels)) || !d.configured[pinNum] {
		return errPinNotPWM
	}

	v := uint32(value)
	if v > d.top {
		v = d.top
	}
	d.peripherals[(pinNum>>1)&0x7].Set(d.channels[pinNum], v)
	return nil
}

// getPWMPeripheral returns the PWM peripheral for a given slice number
func getPWMPeripheral(sliceNum uint8) servo.PWM {
	switch sliceNum {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
