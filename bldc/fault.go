package bldc

import (
	"errors"

	"hallbldc/core"
)

var (
	ErrHallSensor    = errors.New("hall sensor code out of table")
	ErrStall         = errors.New("motor stalled while starting")
	ErrDirection     = errors.New("motor turning against commanded direction")
	ErrCalibration   = errors.New("hall calibration inconsistent")
	ErrNotCalibrated = errors.New("motor not calibrated")
	ErrBadConfig     = errors.New("invalid motor configuration")
)

// ErrorHandler receives motor faults. It runs in the context that detected
// the fault, which is usually an interrupt.
type ErrorHandler func(side Side, err error)

// StateObserver sees every accepted state change
type StateObserver func(side Side, from, to State)

var (
	errorHandler  ErrorHandler
	stateObserver StateObserver
)

// SetErrorHandler installs the fault sink
func SetErrorHandler(h ErrorHandler) {
	errorHandler = h
}

// SetStateObserver installs a hook called on every state change
func SetStateObserver(o StateObserver) {
	stateObserver = o
}

// faultCode maps a fault to the value stored in the timing ring
func faultCode(err error) uint32 {
	switch err {
	case ErrHallSensor:
		return 1
	case ErrStall:
		return 2
	case ErrDirection:
		return 3
	case ErrCalibration:
		return 4
	case ErrNotCalibrated:
		return 5
	}
	return 0xFF
}

// fault stops the motor, clears its target and reports err once.
// With StopWithSibling set the other motor is stopped as well.
func (m *Motor) fault(err error) {
	m.targetSpeed = 0
	m.enterStopped()
	m.lastFault = err
	core.RecordTiming(core.EvtFault, m.index, core.GetTime(), faultCode(err), uint32(m.Side()))

	if m.cfg.StopWithSibling {
		sib := m.Sibling()
		sib.targetSpeed = 0
		sib.enterStopped()
	}

	if errorHandler != nil {
		errorHandler(m.Side(), err)
	}
}
