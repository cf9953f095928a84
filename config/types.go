package config

// MotorProfile is the wiring and hall calibration of one wheel motor.
// Pins are named "gpioN" like the rest of the board profile.
type MotorProfile struct {
	PhasePins  [3]string // PWM outputs for phases A, B, C
	HallPins   [3]string // hall sensor inputs, bit 0..2 of the hall code
	Gate       uint8     // bridge enable channel
	SpeedTicks uint8     // bitmask of speed sample timers serving this motor
	PolePairs  uint8

	// Written back by calibration
	OffsetPosHall uint8
	OffsetNegHall uint8
	OffsetDir     int8
	Calibrated    bool

	StopWithSibling bool // a fault on this motor also stops the other one
}

// BoardConfig is the complete board profile
type BoardConfig struct {
	Left  MotorProfile
	Right MotorProfile

	GateBackend string // "pio" or "gpio"
	GateBase    string // first of the consecutive bridge enable pins

	// Speeds commanded after init, in RPM (sign gives direction)
	LeftRPM  int16
	RightRPM int16

	Debug bool // enable debug output on the UART
}
