package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// Pull selects the bias of an input pin
type Pull uint8

const (
	PullNone Pull = iota
	PullUp        // open collector hall sensors
	PullDown
)

// GPIODriver is the input side of the HAL: the hall sensors.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureInput makes pin a digital input with the given bias
	// Configuring a pin twice is not an error
	ConfigureInput(pin GPIOPin, pull Pull) error

	// ReadPin returns the pin level
	// Called from the hall interrupt, so it must not block or allocate
	ReadPin(pin GPIOPin) bool
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}
