//go:build rp2040

package pio

import (
	"errors"

	"hallbldc/core"
)

// One bridge per motor
const maxBridges = 2

var (
	errBadBridge      = errors.New("gates: bridge index out of range")
	errNoStateMachine = errors.New("gates: no free PIO state machine")
)

var (
	// PIO allocation tracking
	// RP2040 has 2 PIO blocks (PIO0, PIO1) with 4 state machines each
	pioAllocations = [2][4]bool{} // [pioNum][smNum]
	nextPIONum     = uint8(0)
	nextSMNum      = uint8(0)
)

// InitGates registers the gate driver for the chosen backend
// backend: "pio" or "gpio"
// basePin: first of the 3*maxBridges consecutive enable pins
func InitGates(backend string, basePin uint8) core.GateDriver {
	var d core.GateDriver
	if backend == "pio" {
		d = NewPIOGateDriver(basePin)
	} else {
		d = NewGPIOGateDriver(basePin)
	}
	core.SetGateDriver(d)
	return d
}

// allocatePIO allocates a PIO state machine
// Returns (pioNum, smNum, ok)
func allocatePIO() (uint8, uint8, bool) {
	// Round-robin allocation across PIO blocks and state machines
	for i := 0; i < 8; i++ { // 2 PIO × 4 SM = 8 total
		pioNum := nextPIONum
		smNum := nextSMNum

		nextSMNum++
		if nextSMNum >= 4 {
			nextSMNum = 0
			nextPIONum = (nextPIONum + 1) % 2
		}

		if !pioAllocations[pioNum][smNum] {
			pioAllocations[pioNum][smNum] = true
			return pioNum, smNum, true
		}
	}

	return 0, 0, false
}
