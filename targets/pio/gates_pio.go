//go:build rp2040

package pio

// PIO gate backend using tinygo-org/pio package.
// One state machine per bridge shifts a 3-bit enable mask onto three
// consecutive pins, so all phases of a bridge switch on the same PIO cycle.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Enable word format:
//
//	Bits 0-2: enable for phases A, B, C (1 = driven, 0 = floating)
//
// buildGateProgram creates the gate PIO program using AssemblerV0
func buildGateProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestPins, 3).Encode(), // 1: out pins, 3
		// .wrap
	}
}

const (
	gatePIOOrigin = -1 // let the allocator place the program
	gateAllOn     = 0b111
	gateAllOff    = 0
)

// PIOGateDriver implements core.GateDriver with one state machine per bridge
type PIOGateDriver struct {
	basePin machine.Pin
	bridges [maxBridges]pioBridge
}

type pioBridge struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	ready  bool
	offset uint8
}

// NewPIOGateDriver creates a PIO gate driver whose bridge n uses the
// enable pins basePin+3n .. basePin+3n+2
func NewPIOGateDriver(basePin uint8) *PIOGateDriver {
	return &PIOGateDriver{basePin: machine.Pin(basePin)}
}

// Init claims a state machine for the bridge and floats its phases
func (d *PIOGateDriver) Init(bridge uint8) error {
	if bridge >= maxBridges {
		return errBadBridge
	}
	b := &d.bridges[bridge]
	if b.ready {
		d.SetEnabled(bridge, false)
		return nil
	}

	pioNum, smNum, ok := allocatePIO()
	if !ok {
		return errNoStateMachine
	}
	if pioNum == 0 {
		b.pio = rp2pio.PIO0
	} else {
		b.pio = rp2pio.PIO1
	}
	b.sm = b.pio.StateMachine(smNum)
	b.pin = d.basePin + machine.Pin(3*bridge)

	// Claim the state machine before touching its registers
	b.sm.TryClaim()

	program := buildGateProgram()
	offset, err := b.pio.AddProgram(program, gatePIOOrigin)
	if err != nil {
		return err
	}
	b.offset = offset

	for i := machine.Pin(0); i < 3; i++ {
		(b.pin + i).Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(b.pin, 3)
	// Shift right, explicit PULL, 32-bit threshold
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// Init before pin directions
	b.sm.Init(offset, cfg)
	b.sm.SetPinsConsecutive(b.pin, 3, false)
	b.sm.SetPindirsConsecutive(b.pin, 3, true)
	b.sm.SetEnabled(true)

	b.ready = true
	return nil
}

// SetEnabled queues the enable mask without waiting.
// A full FIFO already holds newer words than the hardware shows, so the
// last queued word wins.
func (d *PIOGateDriver) SetEnabled(bridge uint8, enabled bool) {
	if bridge >= maxBridges || !d.bridges[bridge].ready {
		return
	}
	b := &d.bridges[bridge]
	word := uint32(gateAllOff)
	if enabled {
		word = gateAllOn
	}
	if b.sm.IsTxFIFOFull() {
		b.sm.ClearFIFOs()
	}
	b.sm.TxPut(word)
}

// GetName returns the backend name
func (d *PIOGateDriver) GetName() string {
	return "PIO"
}
