package bldc

import "hallbldc/core"

// rpm converts count edges over total ticks to mechanical RPM
func (m *Motor) rpm(count, total uint32) uint16 {
	if count == 0 || total == 0 {
		return 0
	}
	v := 60 * uint64(core.TimerFreq) * uint64(count) / (uint64(total) * uint64(m.cfg.edgesPerRev()))
	if v > 0xFFFF {
		v = 0xFFFF
	}
	return uint16(v)
}

// SpeedISR runs once per speed window. It measures speed, detects stalls,
// drives the early state changes and steps the amplitude in GOING.
func (m *Motor) SpeedISR() {
	now := core.GetTime()
	count, total := uint32(m.periodCount), m.totalHallCount
	m.periodCount = 0
	m.totalHallCount = 0

	edges := m.edgeSeen
	if edges {
		m.edgeSeen = false
		m.quiet = now - m.lastEdge
	} else if m.quiet > ^uint32(0)-SpeedSamplePeriod {
		m.quiet = ^uint32(0)
	} else {
		m.quiet += SpeedSamplePeriod
	}

	stalled := m.quiet > m.hallLimit
	switch {
	case stalled:
		m.speed = 0
		m.timed = false
		m.consistent = 0
	case count > 0:
		m.speed = m.rpm(count, total)
	default:
		// No edge this window: the rotor is at most as fast as one edge per quiet time
		if bound := m.rpm(1, m.quiet); bound < m.speed {
			m.speed = bound
		}
	}

	switch st := m.State(); st {
	case Stopped:
		m.maybeStart(stalled)
	case Starting:
		m.startProgress(edges)
	case SettingUp, ReadyToTransition, Transitioning:
		if stalled {
			m.restart()
		}
	case Going:
		if stalled {
			core.RecordTiming(core.EvtStall, m.index, now, m.quiet, 0)
			m.restart()
			break
		}
		if m.amplitudeSettled() {
			m.regulate()
		}
	}
	core.RecordTiming(core.EvtSpeedSample, m.index, now, uint32(m.speed), uint32(m.newPwm))
}

// startProgress decides whether open-loop commutation has locked on
func (m *Motor) startProgress(edges bool) {
	if !edges {
		m.stableWindows = 0
		m.startWindows++
		if m.startWindows >= StartTimeoutWindows {
			m.fault(ErrStall)
		}
		return
	}
	m.startWindows = 0
	if m.consistent >= ConsistentEdges && m.speed > 0 {
		m.stableWindows++
		if m.stableWindows >= StableWindows {
			m.setState(SettingUp)
		}
		return
	}
	m.stableWindows = 0
}

// amplitudeSettled reports whether the last amplitude step has reached the
// outputs. The loop steps once per applied amplitude, not once per window.
func (m *Motor) amplitudeSettled() bool {
	old, cur, staged := m.tables.load()
	return old == cur && staged == slotNone && m.newPwm == m.pwm
}

// regulate steps newPwm toward the target speed. The remainder of the
// proportional division is carried so small errors still integrate.
func (m *Motor) regulate() {
	err := int32(m.targetSpeed) - int32(m.speed)
	acc := m.pwmRem + err*KpNum
	step := acc / KpDen
	m.pwmRem = acc % KpDen
	if step > MaxPwmStep {
		step, m.pwmRem = MaxPwmStep, 0
	} else if step < -MaxPwmStep {
		step, m.pwmRem = -MaxPwmStep, 0
	}

	p := int32(m.newPwm) + step
	if p < MinPwm {
		p = MinPwm
	} else if p > MaxPwm {
		p = MaxPwm
	}
	m.newPwm = uint16(p)
}

// maybeStart leaves STOPPED once there is a target and the rotor is either
// still or already turning the commanded way
func (m *Motor) maybeStart(stationary bool) {
	if m.targetSpeed == 0 || !m.cfg.Calibrated {
		return
	}
	if stationary {
		m.direction = m.pendingDirection
	}
	if m.direction == m.pendingDirection {
		m.start()
	}
}
