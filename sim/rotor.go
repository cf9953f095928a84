package sim

import (
	"math"

	"hallbldc/core"
)

// Hall codes in rotation order for a sensor set with HallDir = +1
var hallSequence = [6]uint8{1, 3, 2, 6, 4, 5}

// RotorParams describes a motor in the electrical angle domain
type RotorParams struct {
	PolePairs  int
	Inertia    float64 // torque per electrical rad/s^2
	Damping    float64 // viscous torque per electrical rad/s
	TorqueGain float64 // torque from a unit voltage vector at 90 degrees
	Friction   float64 // Coulomb friction torque

	// Hall mounting. The code for true sector s is
	// hallSequence[mod6(HallDir*(s-offset))], where offset depends on the
	// direction of the last sector crossing.
	HallOffsetPos uint8
	HallOffsetNeg uint8
	HallDir       int8
}

// DefaultRotorParams is a 15 pole pair hub motor; about 27% amplitude
// holds 120 RPM
func DefaultRotorParams() RotorParams {
	return RotorParams{
		PolePairs:  15,
		Inertia:    0.05,
		Damping:    1,
		TorqueGain: 942,
		Friction:   5,
		HallDir:    1,
	}
}

// Rotor is one simulated motor
type Rotor struct {
	Params   RotorParams
	Angle    float64 // electrical radians
	Velocity float64 // electrical rad/s
	Load     float64 // external torque
	Locked   bool    // mechanically blocked

	// OnEdge runs whenever the hall code changes
	OnEdge func()

	phasePins [3]core.PWMPin
	gate      uint8

	sector  int
	lastDir int8
	code    uint8
	forced  bool
	edges   uint32
}

func newRotor(p RotorParams, phase [3]core.PWMPin, gate uint8, angle float64) *Rotor {
	r := &Rotor{Params: p, Angle: angle, phasePins: phase, gate: gate, lastDir: 1}
	r.sector = r.trueSector()
	r.code = r.sensorCode()
	return r
}

// trueSector is the 60 degree electrical sector the rotor is in
func (r *Rotor) trueSector() int {
	a := math.Mod(r.Angle, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return int(a/(math.Pi/3)) % 6
}

func (r *Rotor) sensorCode() uint8 {
	off := r.Params.HallOffsetPos
	if r.lastDir < 0 {
		off = r.Params.HallOffsetNeg
	}
	h := (int(r.Params.HallDir)*(r.sector-int(off)))%6 + 6
	return hallSequence[h%6]
}

// HallCode is the code currently on the sensor outputs
func (r *Rotor) HallCode() uint8 {
	return r.code
}

// Edges counts hall code changes
func (r *Rotor) Edges() uint32 {
	return r.edges
}

// RPM is the mechanical speed
func (r *Rotor) RPM() float64 {
	return r.Velocity / (2 * math.Pi) * 60 / float64(r.Params.PolePairs)
}

// ForceCode puts code on the sensor outputs until ReleaseCode
func (r *Rotor) ForceCode(code uint8) {
	r.forced = true
	r.setCode(code)
}

// ReleaseCode returns the outputs to the rotor position
func (r *Rotor) ReleaseCode() {
	r.forced = false
	r.setCode(r.sensorCode())
}

func (r *Rotor) setCode(code uint8) {
	if code == r.code {
		return
	}
	r.code = code
	r.edges++
	if r.OnEdge != nil {
		r.OnEdge()
	}
}

// torque is the electromagnetic torque of the applied phase duties
func (r *Rotor) torque(pwm *PWMDriver, gates *GateDriver) float64 {
	if !gates.Enabled(r.gate) {
		return 0
	}
	top := float64(pwm.GetMaxValue())
	a := float64(pwm.Duty(r.phasePins[0])) / top
	b := float64(pwm.Duty(r.phasePins[1])) / top
	c := float64(pwm.Duty(r.phasePins[2])) / top

	alpha := a - (b+c)/2
	beta := (b - c) * math.Sqrt(3) / 2
	s, co := math.Sincos(r.Angle)
	return r.Params.TorqueGain * (beta*co - alpha*s)
}

// step integrates the rotor over dt seconds and updates the hall outputs
func (r *Rotor) step(dt float64, pwm *PWMDriver, gates *GateDriver) {
	if r.Locked {
		r.Velocity = 0
	} else {
		drive := r.torque(pwm, gates) + r.Load - r.Params.Damping*r.Velocity
		f := r.Params.Friction
		switch {
		case r.Velocity != 0:
			v := r.Velocity + (drive-math.Copysign(f, r.Velocity))/r.Params.Inertia*dt
			if (v > 0) != (r.Velocity > 0) && math.Abs(drive) <= f {
				v = 0
			}
			r.Velocity = v
		case math.Abs(drive) > f:
			r.Velocity = (drive - math.Copysign(f, drive)) / r.Params.Inertia * dt
		}
		r.Angle += r.Velocity * dt
	}

	s := r.trueSector()
	if s == r.sector {
		return
	}
	switch (s - r.sector + 6) % 6 {
	case 1:
		r.lastDir = 1
	case 5:
		r.lastDir = -1
	}
	r.sector = s
	if !r.forced {
		r.setCode(r.sensorCode())
	}
}
