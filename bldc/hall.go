package bldc

import "hallbldc/core"

// Hall codes in rotation order. 0 and 7 never appear on a healthy sensor.
var hallOrder = [HallSectors]uint8{1, 3, 2, 6, 4, 5}

var hallLookup = [8]int8{-1, 0, 2, 1, 4, 5, 3, -1}

// hallIndex returns the position of code in hallOrder
func hallIndex(code uint8) (uint8, bool) {
	if code > 7 || hallLookup[code] < 0 {
		return 0, false
	}
	return uint8(hallLookup[code]), true
}

// HallCode returns the code at index h of the rotation order
func HallCode(h uint8) uint8 {
	return hallOrder[int(h)%HallSectors]
}

// readHall samples the three hall inputs
func (m *Motor) readHall() uint8 {
	var code uint8
	for bit, pin := range m.cfg.HallPins {
		if m.gpio.ReadPin(pin) {
			code |= 1 << bit
		}
	}
	return code
}

// sectorOf converts a hall index to the electrical sector of the rotor
func (m *Motor) sectorOf(h uint8) uint8 {
	return uint8(mod6(int(m.cfg.OffsetDir)*int(h) + int(m.cfg.offset(m.direction))))
}

// HallISR tracks rotor position and edge timing. It runs on every change
// of the hall inputs.
func (m *Motor) HallISR() {
	now := core.GetTime()
	code := m.readHall()
	idx, ok := hallIndex(code)
	if !ok {
		m.hallSynced = false
		if m.State() != Stopped {
			m.fault(ErrHallSensor)
		}
		return
	}
	if m.hallSynced && idx == m.hallIdx {
		return
	}

	var seen int8
	if m.hallSynced {
		switch mod6(int(idx) - int(m.hallIdx)) {
		case 1:
			seen = m.cfg.OffsetDir
		case HallSectors - 1:
			seen = -m.cfg.OffsetDir
		}
	}
	m.hallIdx = idx
	m.hallSynced = true

	st := m.State()
	if st == Going && seen != 0 && seen != m.direction {
		m.fault(ErrDirection)
		return
	}

	m.position = uint16(m.sectorOf(idx)) * SectorSteps
	m.edgeSeen = true
	elapsed := now - m.lastEdge
	m.lastEdge = now

	if !m.timed {
		// First edge after a start or a stall has no usable interval
		m.timed = true
		m.consistent = 0
		m.edgeSteps = 0
		core.RecordTiming(core.EvtHallEdge, m.index, now, uint32(code), 0)
		return
	}

	m.lastHallCount = m.thisHallCount
	m.thisHallCount = elapsed
	m.delta = int32(m.thisHallCount - m.lastHallCount)
	m.totalHallCount += elapsed
	m.periodCount++

	if seen != 0 && seen == m.direction && m.steady() {
		if m.consistent < 0xFFFF {
			m.consistent++
		}
	} else {
		m.consistent = 0
	}

	if st != Stopped {
		m.retime(st)
	}
	m.edgeSteps = 0
	core.RecordTiming(core.EvtHallEdge, m.index, now, uint32(code), elapsed)
}

// steady reports whether the last interval is within half of the one before
func (m *Motor) steady() bool {
	if m.lastHallCount == 0 {
		return true
	}
	d := m.delta
	if d < 0 {
		d = -d
	}
	return uint32(d) <= m.lastHallCount/2
}

// retime sets the duty interval so the stepper covers the next sector in
// about the time the last one took. In sinusoidal states the step count is
// stretched or shrunk by the phase error so the sine stays locked to the rotor.
func (m *Motor) retime(st State) {
	steps := SectorSteps
	limit := uint32(maxTrapInterval)
	if st.sinusoidal() {
		e := wrapSigned(m.edgeIndex() - int(m.sineIndex()))
		if e > SectorSteps/2 {
			e = SectorSteps / 2
		} else if e < -SectorSteps/2 {
			e = -SectorSteps / 2
		}
		steps = SectorSteps + int(m.direction)*e
		limit = m.hallLimit / SectorSteps
	}

	interval := m.thisHallCount / uint32(steps)
	if interval < minDutyInterval {
		interval = minDutyInterval
	} else if interval > limit {
		interval = limit
	}
	m.dutyInterval = interval
}

// rotorEdge is the rotor angle, in duty steps, at the last hall edge
func (m *Motor) rotorEdge() int {
	p := int(m.position)
	if m.direction < 0 {
		p += SectorSteps
	}
	return p
}

// edgeIndex is the sine index that puts the drive vector 90 degrees ahead
// of the rotor at the last edge
func (m *Motor) edgeIndex() int {
	return m.rotorEdge() + int(m.direction)*leadSteps - originSteps
}

// rotorEstimate extrapolates edgeIndex by the steps taken since the edge
func (m *Motor) rotorEstimate() uint16 {
	return wrapIndex(m.edgeIndex() + int(m.direction)*int(m.edgeSteps))
}

// trapIndex is the six-step index: sector centre plus 90 degrees
func (m *Motor) trapIndex() uint16 {
	return wrapIndex(int(m.position) + SectorSteps/2 + int(m.direction)*leadSteps - originSteps)
}

// sineIndex is where the sinusoidal drive is at this duty tick
func (m *Motor) sineIndex() uint16 {
	return wrapIndex(int(m.anchor) + int(m.direction)*int(m.timerDutyCnt))
}
