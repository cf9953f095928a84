package bldc

import "hallbldc/core"

// MotorConfig is the board wiring and hall calibration of one motor
type MotorConfig struct {
	Side      Side
	PhasePins [3]core.PWMPin  // A, B, C
	Gate      uint8           // bridge enable channel
	HallPins  [3]core.GPIOPin // hall bits 0..2
	TSBitmask uint8           // speed sample ticks serving this motor

	// Hall calibration
	OffsetPosHall uint8
	OffsetNegHall uint8
	OffsetDir     int8
	Calibrated    bool

	PolePairs       uint8
	StopWithSibling bool // a fault on this motor also stops the other one
}

func (c *MotorConfig) validate() error {
	if c.Side >= numMotors || c.TSBitmask == 0 {
		return ErrBadConfig
	}
	if c.OffsetPosHall >= HallSectors || c.OffsetNegHall >= HallSectors {
		return ErrBadConfig
	}
	if c.OffsetDir != 1 && c.OffsetDir != -1 {
		return ErrBadConfig
	}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if c.PhasePins[i] == c.PhasePins[j] || c.HallPins[i] == c.HallPins[j] {
				return ErrBadConfig
			}
		}
	}
	return nil
}

func (c *MotorConfig) polePairs() uint32 {
	if c.PolePairs == 0 {
		return DefaultPolePairs
	}
	return uint32(c.PolePairs)
}

// edgesPerRev is the number of hall edges per mechanical revolution
func (c *MotorConfig) edgesPerRev() uint32 {
	return HallSectors * c.polePairs()
}

// hallLimit is twice the edge interval at MinSpeed
func (c *MotorConfig) hallLimit() uint32 {
	return 2 * uint32(60*uint64(core.TimerFreq)/(uint64(MinSpeed)*uint64(c.edgesPerRev())))
}

// offset returns the hall offset for a direction of travel
func (c *MotorConfig) offset(direction int8) uint8 {
	if direction < 0 {
		return c.OffsetNegHall
	}
	return c.OffsetPosHall
}
