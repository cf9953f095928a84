package bldc

import (
	"sync/atomic"

	"hallbldc/core"
)

// State is the commutation state of one motor
type State uint32

const (
	Starting State = iota
	SettingUp
	ReadyToTransition
	Transitioning
	Going
	Stopped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Starting:
		return "STARTING"
	case SettingUp:
		return "SETTING_UP"
	case ReadyToTransition:
		return "READY_TO_TRANSITION"
	case Transitioning:
		return "TRANSITIONING"
	case Going:
		return "GOING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// sinusoidal reports whether the stepper follows the sine anchor in this state
func (s State) sinusoidal() bool {
	return s == Transitioning || s == Going
}

// canTransition is the whole state graph. Any state may stop, states past
// STARTING may fall back to it on a stall, everything else moves forward by one.
func canTransition(from, to State) bool {
	if to == Stopped {
		return true
	}
	switch from {
	case Stopped:
		return to == Starting
	case Starting:
		return to == SettingUp
	case SettingUp:
		return to == ReadyToTransition || to == Starting
	case ReadyToTransition:
		return to == Transitioning || to == Starting
	case Transitioning:
		return to == Going || to == Starting
	case Going:
		return to == Starting
	}
	return false
}

// State returns the current commutation state
func (m *Motor) State() State {
	return State(atomic.LoadUint32((*uint32)(&m.state)))
}

// setState moves the motor along the state graph. Callers are either
// interrupt handlers or foreground code holding interrupts off.
func (m *Motor) setState(to State) bool {
	from := m.State()
	if from == to {
		return to == Stopped
	}
	if !canTransition(from, to) {
		return false
	}
	atomic.StoreUint32((*uint32)(&m.state), uint32(to))
	core.RecordTiming(core.EvtStateChange, m.index, core.GetTime(), uint32(from), uint32(to))
	if stateObserver != nil {
		stateObserver(m.Side(), from, to)
	}
	return true
}
