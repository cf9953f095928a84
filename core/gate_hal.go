package core

// GateDriver defines the hardware abstraction for a three-phase bridge's
// enable lines. Implementations can use GPIO, PIO, or a gate driver IC.
type GateDriver interface {
	// Init prepares the enable outputs of one bridge
	// bridge: bridge index (one per motor)
	// Bridges must come up disabled (all phases floating)
	Init(bridge uint8) error

	// SetEnabled energizes (true) or floats (false) all three phases
	// Called from interrupt context on faults, so it must not block
	SetEnabled(bridge uint8, enabled bool)

	// GetName returns backend implementation name
	GetName() string
}

// Global singleton used by core code.
var gateDriver GateDriver

// SetGateDriver is called by target-specific code to register its driver.
func SetGateDriver(d GateDriver) {
	gateDriver = d
}

// MustGates returns the configured driver or panics if missing.
func MustGates() GateDriver {
	if gateDriver == nil {
		panic("gate driver not configured")
	}
	return gateDriver
}
