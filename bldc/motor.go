package bldc

import "hallbldc/core"

// Motor is the runtime state of one motor. Fields are shared between the
// hall, duty and speed interrupts and the foreground.
type Motor struct {
	cfg     MotorConfig
	index   uint8
	sibling uint8
	state   State

	pwmDrv core.PWMDriver
	gpio   core.GPIODriver
	gates  core.GateDriver
	top    uint32

	// Hall tracker
	position       uint16
	hallIdx        uint8
	hallSynced     bool
	timed          bool
	edgeSeen       bool
	lastEdge       uint32
	periodCount    uint16
	lastHallCount  uint32
	thisHallCount  uint32
	totalHallCount uint32
	delta          int32
	hallLimit      uint32
	quiet          uint32
	consistent     uint16

	// Speed controller
	speed            uint16
	targetSpeed      uint16
	direction        int8
	pendingDirection int8
	stableWindows    uint8
	startWindows     uint8
	pwm              uint16
	newPwm           uint16
	pwmRem           int32

	// Stepper
	tables       dutyTables
	ratio        uint32
	rampLen      uint32
	timerDutyCnt uint16
	anchor       uint16
	edgeSteps    uint16
	dutyInterval uint32
	dutyTimer    core.Timer

	lastFault error
	reported  State
}

// Status is a consistent snapshot of a motor
type Status struct {
	State        State
	Position     uint16
	Speed        uint16
	TargetSpeed  uint16
	Direction    int8
	Pwm          uint16
	NewPwm       uint16
	Ratio        uint32
	TimerDutyCnt uint16
	DutyInterval uint32
	OldTable     uint8
	NewTable     uint8
	StagedTable  uint8
}

// Side returns which motor this is
func (m *Motor) Side() Side {
	return m.cfg.Side
}

// Config returns a copy of the motor configuration, including calibration
func (m *Motor) Config() MotorConfig {
	return m.cfg
}

// Sibling returns the other motor
func (m *Motor) Sibling() *Motor {
	return &motors[m.sibling]
}

// LastFault returns the most recent fault, or nil
func (m *Motor) LastFault() error {
	return m.lastFault
}

// Status returns a snapshot taken with interrupts off
func (m *Motor) Status() Status {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	old, cur, staged := m.tables.load()
	return Status{
		State:        m.State(),
		Position:     m.position,
		Speed:        m.speed,
		TargetSpeed:  m.targetSpeed,
		Direction:    m.direction,
		Pwm:          m.pwm,
		NewPwm:       m.newPwm,
		Ratio:        m.ratio,
		TimerDutyCnt: m.timerDutyCnt,
		DutyInterval: m.dutyInterval,
		OldTable:     old,
		NewTable:     cur,
		StagedTable:  staged,
	}
}

// start samples the hall inputs and begins six-step commutation. Used for
// STOPPED to STARTING and for falling back to STARTING after a stall.
func (m *Motor) start() bool {
	idx, ok := hallIndex(m.readHall())
	if !ok {
		m.hallSynced = false
		m.fault(ErrHallSensor)
		return false
	}
	if !m.setState(Starting) {
		return false
	}

	m.hallIdx = idx
	m.hallSynced = true
	m.position = uint16(m.sectorOf(idx)) * SectorSteps
	m.timed = false
	m.edgeSeen = false
	m.consistent = 0
	m.stableWindows = 0
	m.startWindows = 0
	m.edgeSteps = 0

	m.tables.reset()
	m.ratio = 0
	m.rampLen = 0
	m.timerDutyCnt = 0
	m.pwm = StartPwm
	m.newPwm = StartPwm
	m.pwmRem = 0
	m.dutyInterval = maxTrapInterval

	m.gates.SetEnabled(m.cfg.Gate, true)
	return true
}

// restart drops back to STARTING after a stall
func (m *Motor) restart() {
	m.speed = 0
	m.start()
}

// enterStopped zeroes the outputs and floats the bridge. Tracking keeps
// running so a coasting rotor is still measured.
func (m *Motor) enterStopped() {
	m.setState(Stopped)
	m.writePhases([3]uint32{})
	m.gates.SetEnabled(m.cfg.Gate, false)

	m.tables.reset()
	m.ratio = 0
	m.rampLen = 0
	m.timerDutyCnt = 0
	m.pwm = 0
	m.newPwm = 0
	m.pwmRem = 0
	m.dutyInterval = idleDutyInterval
}

// command applies a signed speed request
func (m *Motor) command(rpm int16) {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	if rpm == 0 {
		m.targetSpeed = 0
		m.enterStopped()
		return
	}

	dir := int8(1)
	mag := int32(rpm)
	if mag < 0 {
		dir, mag = -1, -mag
	}
	if mag < MinSpeed {
		mag = MinSpeed
	} else if mag > MaxSpeed {
		mag = MaxSpeed
	}

	if !m.cfg.Calibrated {
		m.fault(ErrNotCalibrated)
		return
	}
	m.targetSpeed = uint16(mag)
	m.pendingDirection = dir

	switch st := m.State(); {
	case st == Stopped:
		stationary := m.quiet > m.hallLimit
		if stationary {
			m.direction = dir
		}
		if m.direction == dir {
			m.start()
		}
	case st == Starting:
		if m.direction != dir {
			m.direction = dir
			m.position = uint16(m.sectorOf(m.hallIdx)) * SectorSteps
			m.consistent = 0
			m.stableWindows = 0
		}
	case dir != m.direction:
		// Coast down; the speed window restarts it once the rotor is still
		m.enterStopped()
	}
}

// maintain runs the table generator for this motor
func (m *Motor) maintain() {
	switch m.State() {
	case SettingUp:
		m.tables.unstage()
		slot, ok := m.tables.freeSlot()
		if !ok {
			return
		}
		m.tables.build(slot, waveSine, m.top, m.newPwm)
		if !m.tables.stage(slot) {
			return
		}
		state := core.DisableInterrupts()
		if m.State() == SettingUp {
			m.setState(ReadyToTransition)
		}
		core.RestoreInterrupts(state)

	case Going:
		amp := m.newPwm
		if absDiff(amp, m.pwm) < pwmDeadband {
			return
		}
		slot, ok := m.tables.freeSlot()
		if !ok {
			return
		}
		m.tables.build(slot, waveSine, m.top, amp)
		m.tables.stage(slot)
	}
}

// report logs state changes and faults seen since the last call
func (m *Motor) report() {
	st := m.State()
	if st == m.reported {
		return
	}
	m.reported = st
	core.DebugPrintln("[BLDC] " + m.Side().String() + " " + st.String() +
		" rpm=" + core.Utoa(uint32(m.speed)) + " pwm=" + core.Utoa(uint32(m.pwm)))
	if st == Stopped && m.lastFault != nil {
		core.DebugPrintln("[BLDC] " + m.Side().String() + " fault: " + m.lastFault.Error())
		core.DumpTimingRing()
	}
}

func absDiff(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}
