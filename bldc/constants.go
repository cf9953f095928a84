package bldc

import "hallbldc/core"

// Drive limits
const (
	PWMFrequency = 31250 // PWM carrier frequency in Hertz
	MinSpeed     = 11    // rotations per minute
	MaxSpeed     = 360
	DutySteps    = 384 // duty samples per electrical cycle

	DefaultPolePairs = 15 // hub motor
)

// Electrical geometry, in duty steps
const (
	HallSectors = 6
	SectorSteps = DutySteps / HallSectors // 60 degrees
	phaseSteps  = DutySteps / 3           // 120 degrees
	leadSteps   = DutySteps / 4           // drive leads the rotor by 90 degrees
	originSteps = DutySteps / 2           // table index 0 is the 180 degree vector
)

// Amplitudes are in tenths of a percent of the PWM period
const (
	PwmScale     = 1000
	StartPwm     = 100 // open-loop six-step amplitude
	CalibratePwm = 50  // holding amplitude while calibrating
	MinPwm       = 20
	MaxPwm       = 950
	MaxPwmStep   = 20 // largest amplitude change per speed window
	pwmDeadband  = 1

	// Step per amplitude update: KpNum/KpDen tenths of a percent per RPM of error
	KpNum = 1
	KpDen = 3
)

// Timing, in core timer ticks unless noted
const (
	SpeedSamplePeriod   = core.TimerFreq / 20 // 50ms speed window
	ConsistentEdges     = 12                  // two electrical cycles
	StableWindows       = 2
	StartTimeoutWindows = 20
	TransitionCycles    = 4 // trapezoid to sine blend length, in electrical cycles
	AmplitudeRampCycles = 1

	CalibrateSettle  = core.TimerFreq / 2 // 500ms per held sector
	maxTrapInterval  = core.TimerFreq / 2000
	minDutyInterval  = 2
	idleDutyInterval = core.TimerFreq / 1000
)
