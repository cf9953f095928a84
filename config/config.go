package config

import (
	"encoding/json"
	"errors"

	"hallbldc/bldc"
	"hallbldc/core"
)

var (
	ErrBadPin     = errors.New("config: bad pin name")
	ErrBadBackend = errors.New("config: unknown gate backend")
)

// LoadConfig parses a JSON board profile and returns a BoardConfig
func LoadConfig(jsonData []byte) (*BoardConfig, error) {
	var config BoardConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	if config.GateBackend != "pio" && config.GateBackend != "gpio" {
		return nil, ErrBadBackend
	}

	return &config, nil
}

// SaveConfig serializes a board profile, calibration included
func SaveConfig(config *BoardConfig) ([]byte, error) {
	return json.MarshalIndent(config, "", "  ")
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *BoardConfig) {
	if config.GateBackend == "" {
		config.GateBackend = "pio"
	}
	if config.GateBase == "" {
		config.GateBase = "gpio16"
	}

	for _, m := range []*MotorProfile{&config.Left, &config.Right} {
		if m.PolePairs == 0 {
			m.PolePairs = bldc.DefaultPolePairs
		}
		if m.SpeedTicks == 0 {
			m.SpeedTicks = 1
		}
		// An uncalibrated motor still needs a legal direction
		if m.OffsetDir == 0 {
			m.OffsetDir = 1
		}
	}
}

// DefaultBoardConfig returns the profile of the reference two-wheel board
func DefaultBoardConfig() *BoardConfig {
	return &BoardConfig{
		Left: MotorProfile{
			PhasePins:  [3]string{"gpio0", "gpio2", "gpio4"},
			HallPins:   [3]string{"gpio10", "gpio11", "gpio12"},
			Gate:       0,
			SpeedTicks: 1,
			PolePairs:  bldc.DefaultPolePairs,
			OffsetDir:  1,
		},
		Right: MotorProfile{
			PhasePins:  [3]string{"gpio6", "gpio8", "gpio14"},
			HallPins:   [3]string{"gpio13", "gpio20", "gpio21"},
			Gate:       1,
			SpeedTicks: 1,
			PolePairs:  bldc.DefaultPolePairs,
			OffsetDir:  1,
		},
		GateBackend: "pio",
		GateBase:    "gpio16",
	}
}

// ParsePin converts a "gpioN" name to a pin number
func ParsePin(name string) (uint32, error) {
	const prefix = "gpio"
	if len(name) <= len(prefix) || len(name) > len(prefix)+2 {
		return 0, ErrBadPin
	}
	for i := 0; i < len(prefix); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != prefix[i] {
			return 0, ErrBadPin
		}
	}

	var n uint32
	for _, c := range name[len(prefix):] {
		if c < '0' || c > '9' {
			return 0, ErrBadPin
		}
		n = n*10 + uint32(c-'0')
	}
	return n, nil
}

// MotorConfigs converts the profile into the controller configuration,
// left motor first
func (c *BoardConfig) MotorConfigs() ([2]bldc.MotorConfig, error) {
	var out [2]bldc.MotorConfig
	for i, m := range []*MotorProfile{&c.Left, &c.Right} {
		mc := &out[i]
		mc.Side = bldc.Side(i)
		for j := 0; j < 3; j++ {
			pin, err := ParsePin(m.PhasePins[j])
			if err != nil {
				return out, err
			}
			mc.PhasePins[j] = core.PWMPin(pin)

			pin, err = ParsePin(m.HallPins[j])
			if err != nil {
				return out, err
			}
			mc.HallPins[j] = core.GPIOPin(pin)
		}
		mc.Gate = m.Gate
		mc.TSBitmask = m.SpeedTicks
		mc.PolePairs = m.PolePairs
		mc.OffsetPosHall = m.OffsetPosHall
		mc.OffsetNegHall = m.OffsetNegHall
		mc.OffsetDir = m.OffsetDir
		mc.Calibrated = m.Calibrated
		mc.StopWithSibling = m.StopWithSibling
	}
	return out, nil
}

// UpdateCalibration copies calibrated hall offsets back into the profile
func (c *BoardConfig) UpdateCalibration(cfgs [2]bldc.MotorConfig) {
	for i, m := range []*MotorProfile{&c.Left, &c.Right} {
		m.OffsetPosHall = cfgs[i].OffsetPosHall
		m.OffsetNegHall = cfgs[i].OffsetNegHall
		m.OffsetDir = cfgs[i].OffsetDir
		m.Calibrated = cfgs[i].Calibrated
	}
}
