package bldc

import "hallbldc/core"

// DutyISR writes one duty sample to the three phases and advances
// timerDutyCnt. Table swaps happen only when timerDutyCnt wraps to zero.
func (m *Motor) DutyISR() {
	st := m.State()
	if st == Stopped {
		return
	}

	old, cur, _ := m.tables.load()
	trap, sine := m.trapIndex(), m.sineIndex()
	var duty [3]uint32
	for p := range duty {
		v := m.tableSample(cur, trap, sine, p)
		if old != cur {
			o := m.tableSample(old, trap, sine, p)
			v = (o*(m.rampLen-m.ratio) + v*m.ratio) / m.rampLen
		}
		duty[p] = v
	}
	m.writePhases(duty)

	if old != cur {
		m.ratio++
		if m.ratio >= m.rampLen {
			m.retire()
			if st == Transitioning {
				m.setState(Going)
			}
		}
	}

	if m.edgeSteps < SectorSteps {
		m.edgeSteps++
	}
	m.timerDutyCnt++
	if m.timerDutyCnt >= DutySteps {
		m.timerDutyCnt = 0
		m.wraparound()
	}
}

func (m *Motor) tableSample(slot uint8, trap, sine uint16, phase int) uint32 {
	if m.tables.kind[slot] == waveTrapezoid {
		return m.tables.sample(slot, trap, phase)
	}
	return m.tables.sample(slot, sine, phase)
}

// retire ends a ramp: OLD aliases NEW again
func (m *Motor) retire() {
	m.tables.retireOld()
	m.ratio = m.rampLen
}

// wraparound takes a staged table, if any, at the start of a cycle
func (m *Motor) wraparound() {
	old, cur, staged := m.tables.load()
	if staged == slotNone || old != cur {
		return
	}

	var rampCycles uint32
	switch m.State() {
	case ReadyToTransition:
		if m.tables.kind[staged] != waveSine {
			return
		}
		m.anchor = m.rotorEstimate()
		if !m.setState(Transitioning) {
			return
		}
		rampCycles = TransitionCycles
	case Going:
		rampCycles = AmplitudeRampCycles
	default:
		return
	}

	m.tables.store(cur, staged, slotNone)
	m.pwm = m.tables.amp[staged]
	m.ratio = 0
	m.rampLen = DutySteps * rampCycles
	core.RecordTiming(core.EvtTableSwap, m.index, core.GetTime(), uint32(staged), uint32(m.pwm))
}

// writePhases sends three duty values to the phase outputs
func (m *Motor) writePhases(duty [3]uint32) {
	for p, pin := range m.cfg.PhasePins {
		m.pwmDrv.SetDutyCycle(pin, core.PWMValue(duty[p]))
	}
}

// dutyEvent is the duty timer handler
func (m *Motor) dutyEvent(t *core.Timer) uint8 {
	m.DutyISR()
	t.WakeTime += m.dutyInterval
	return core.SF_RESCHEDULE
}
