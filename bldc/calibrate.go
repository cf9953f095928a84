package bldc

import "hallbldc/core"

// Calibrate finds the hall offsets of both motors. Each drive vector is
// held at a sector centre until the rotor settles and the hall code is
// read: one warm-up lap, a forward sweep and a backward sweep. Blocks for
// about 18 hold periods; timers keep running through core.WaitTicks.
func Calibrate() error {
	Stop()

	var fwd, rev [numMotors][HallSectors]uint8
	var bad [numMotors]bool
	for i := range motors {
		motors[i].beginHold()
	}

	hold := func(sector int, into *[numMotors][HallSectors]uint8) {
		for i := range motors {
			motors[i].holdVector(sector)
		}
		core.WaitTicks(CalibrateSettle)
		for i := range motors {
			idx, ok := hallIndex(motors[i].readHall())
			if !ok {
				bad[i] = true
			}
			if into != nil {
				into[i][sector] = idx
			}
		}
	}

	for k := 0; k < HallSectors; k++ {
		hold(k, nil)
	}
	for k := 0; k < HallSectors; k++ {
		hold(k, &fwd)
	}
	for j := 1; j <= HallSectors; j++ {
		hold(mod6(HallSectors-1-j), &rev)
	}

	var firstErr error
	for i := range motors {
		m := &motors[i]
		m.endHold()
		dir, pos, neg, ok := solveOffsets(fwd[i], rev[i])
		if bad[i] || !ok {
			m.cfg.Calibrated = false
			m.fault(ErrCalibration)
			if firstErr == nil {
				firstErr = ErrCalibration
			}
			continue
		}
		m.cfg.OffsetDir = dir
		m.cfg.OffsetPosHall = pos
		m.cfg.OffsetNegHall = neg
		m.cfg.Calibrated = true
		core.DebugPrintln("[BLDC] " + m.Side().String() + " calibrated dir=" + core.Itoa(int(dir)) +
			" pos=" + core.Utoa(uint32(pos)) + " neg=" + core.Utoa(uint32(neg)))
	}
	return firstErr
}

// beginHold energizes a stopped motor with a low sine table in slot 0
func (m *Motor) beginHold() {
	m.tables.build(slotLookup1, waveSine, m.top, CalibratePwm)
	m.gates.SetEnabled(m.cfg.Gate, true)
}

// holdVector points the drive vector at the centre of sector
func (m *Motor) holdVector(sector int) {
	idx := wrapIndex(sector*SectorSteps + SectorSteps/2 - originSteps)
	var duty [3]uint32
	for p := range duty {
		duty[p] = m.tables.sample(slotLookup1, idx, p)
	}
	m.writePhases(duty)
}

func (m *Motor) endHold() {
	m.writePhases([3]uint32{})
	m.gates.SetEnabled(m.cfg.Gate, false)
	m.tables.reset()
}

// solveOffsets derives OffsetDir and the two offsets from hall indices read
// with the vector held at each sector centre. Every step of a sweep must
// move the hall index by the same single step, and each sweep must map
// sectors to indices with one constant offset.
func solveOffsets(fwd, rev [HallSectors]uint8) (dir int8, pos, neg uint8, ok bool) {
	switch mod6(int(fwd[1]) - int(fwd[0])) {
	case 1:
		dir = 1
	case HallSectors - 1:
		dir = -1
	default:
		return 0, 0, 0, false
	}

	solve := func(idx [HallSectors]uint8) (uint8, bool) {
		off := mod6(-int(dir) * int(idx[0]))
		for k := 0; k < HallSectors; k++ {
			if mod6(int(dir)*int(idx[k])+off) != k {
				return 0, false
			}
		}
		return uint8(off), true
	}

	p, okPos := solve(fwd)
	n, okNeg := solve(rev)
	if !okPos || !okNeg {
		return 0, 0, 0, false
	}
	return dir, p, n, true
}
