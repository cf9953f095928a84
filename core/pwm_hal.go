package core

// PWMPin identifies a phase output pin
type PWMPin uint32

// PWMValue is a compare value, 0 to GetMaxValue()
type PWMValue uint32

// PWMDriver drives the phase outputs. Every phase of both motors runs at
// the same carrier, so a single GetMaxValue covers all pins.
type PWMDriver interface {
	// ConfigureHardwarePWM configures a pin for hardware PWM output at 0% duty
	// cycleTicks: PWM period in timer ticks
	// Returns the actual cycle ticks used (may be adjusted for hardware constraints)
	ConfigureHardwarePWM(pin PWMPin, cycleTicks uint32) (uint32, error)

	// SetDutyCycle sets the compare value of a pin
	// Called from the duty tick, so it must not block
	SetDutyCycle(pin PWMPin, value PWMValue) error

	// GetMaxValue returns the compare value for 100% duty
	GetMaxValue() uint32
}

// Global singleton used by core code.
var pwmDriver PWMDriver

// SetPWMDriver is called by target-specific code to register its driver.
func SetPWMDriver(d PWMDriver) {
	pwmDriver = d
}

// MustPWM returns the configured driver or panics if missing.
func MustPWM() PWMDriver {
	if pwmDriver == nil {
		panic("PWM driver not configured")
	}
	return pwmDriver
}
