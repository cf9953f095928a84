package sim

import "hallbldc/core"

// DefaultStepTicks is the integration step in core timer ticks
const DefaultStepTicks = 5

// Bench owns the simulated HAL. Each Step advances the core clock,
// integrates every rotor, fires hall edges, dispatches due timers and runs
// the foreground hook.
type Bench struct {
	PWM       *PWMDriver
	GPIO      *GPIODriver
	Gates     *GateDriver
	Rotors    []*Rotor
	StepTicks uint32

	// Foreground runs after the timers on every step, standing in for
	// the firmware main loop
	Foreground func()
}

// NewBench installs fresh simulated drivers and clears the scheduler
func NewBench() *Bench {
	b := &Bench{
		PWM:       NewPWMDriver(),
		GPIO:      NewGPIODriver(),
		Gates:     NewGateDriver(),
		StepTicks: DefaultStepTicks,
	}
	core.ResetTimers()
	core.SetPWMDriver(b.PWM)
	core.SetGPIODriver(b.GPIO)
	core.SetGateDriver(b.Gates)
	return b
}

// AddRotor wires a rotor to three phase pins, a bridge and three hall pins
func (b *Bench) AddRotor(p RotorParams, phase [3]core.PWMPin, gate uint8, hall [3]core.GPIOPin, angle float64) *Rotor {
	r := newRotor(p, phase, gate, angle)
	for bit, pin := range hall {
		b.GPIO.attach(pin, r, uint(bit))
	}
	b.Rotors = append(b.Rotors, r)
	return r
}

// Step advances the simulation by StepTicks
func (b *Bench) Step() {
	core.SetTime(core.GetTime() + b.StepTicks)
	dt := float64(b.StepTicks) / core.TimerFreq
	for _, r := range b.Rotors {
		r.step(dt, b.PWM, b.Gates)
	}
	core.ProcessTimers()
	if b.Foreground != nil {
		b.Foreground()
	}
}

// Run steps for at least ticks
func (b *Bench) Run(ticks uint32) {
	start := core.GetTime()
	for core.GetTime()-start < ticks {
		b.Step()
	}
}

// RunUntil steps until done returns true or ticks have passed
func (b *Bench) RunUntil(ticks uint32, done func() bool) bool {
	start := core.GetTime()
	for core.GetTime()-start < ticks {
		b.Step()
		if done() {
			return true
		}
	}
	return false
}

// Idle steps once without the foreground hook. Used as the core idle hook
// so blocking foreground waits keep the world moving.
func (b *Bench) Idle() {
	fg := b.Foreground
	b.Foreground = nil
	b.Step()
	b.Foreground = fg
}
