package bldc_test

import (
	"math"
	"testing"

	"hallbldc/bldc"
	"hallbldc/core"
	"hallbldc/sim"
)

var (
	leftPhase  = [3]core.PWMPin{0, 1, 2}
	leftHall   = [3]core.GPIOPin{10, 11, 12}
	rightPhase = [3]core.PWMPin{3, 4, 5}
	rightHall  = [3]core.GPIOPin{13, 14, 15}
)

const second = core.TimerFreq

type fault struct {
	side bldc.Side
	err  error
}

type rig struct {
	bench  *sim.Bench
	rotors [2]*sim.Rotor
	faults []fault
	states [2][]bldc.State
}

func motorConfig(side bldc.Side, p sim.RotorParams, calibrated bool) bldc.MotorConfig {
	cfg := bldc.MotorConfig{
		Side:          side,
		PhasePins:     leftPhase,
		Gate:          0,
		HallPins:      leftHall,
		TSBitmask:     1,
		OffsetPosHall: p.HallOffsetPos,
		OffsetNegHall: p.HallOffsetNeg,
		OffsetDir:     p.HallDir,
		PolePairs:     uint8(p.PolePairs),
		Calibrated:    calibrated,
	}
	if side == bldc.Right {
		cfg.PhasePins = rightPhase
		cfg.Gate = 1
		cfg.HallPins = rightHall
	}
	return cfg
}

// newRig wires two simulated rotors to the motor core. Uncalibrated rigs
// start from deliberately wrong offsets.
func newRig(t *testing.T, lp, rp sim.RotorParams, calibrated bool) *rig {
	t.Helper()

	r := &rig{bench: sim.NewBench()}
	r.rotors[bldc.Left] = r.bench.AddRotor(lp, leftPhase, 0, leftHall, 0.4)
	r.rotors[bldc.Right] = r.bench.AddRotor(rp, rightPhase, 1, rightHall, 2.5)

	bldc.SetErrorHandler(func(side bldc.Side, err error) {
		r.faults = append(r.faults, fault{side, err})
	})
	bldc.SetStateObserver(func(side bldc.Side, from, to bldc.State) {
		r.states[side] = append(r.states[side], to)
	})

	cfgs := [2]bldc.MotorConfig{
		motorConfig(bldc.Left, lp, calibrated),
		motorConfig(bldc.Right, rp, calibrated),
	}
	if !calibrated {
		for i := range cfgs {
			cfgs[i].OffsetPosHall, cfgs[i].OffsetNegHall, cfgs[i].OffsetDir = 0, 0, 1
		}
	}
	if err := bldc.SetupAndInit(cfgs); err != nil {
		t.Fatalf("SetupAndInit failed: %v", err)
	}

	r.rotors[bldc.Left].OnEdge = func() { bldc.HallISRCallback(bldc.Left) }
	r.rotors[bldc.Right].OnEdge = func() { bldc.HallISRCallback(bldc.Right) }
	r.bench.Foreground = bldc.PWMs
	core.SetIdleHook(r.bench.Idle)

	t.Cleanup(func() {
		bldc.Stop()
		bldc.SetErrorHandler(nil)
		bldc.SetStateObserver(nil)
		core.SetIdleHook(nil)
	})
	return r
}

func (r *rig) state(side bldc.Side) bldc.State {
	return bldc.Get(side).State()
}

func (r *rig) runUntilGoing(t *testing.T, sides ...bldc.Side) {
	t.Helper()
	ok := r.bench.RunUntil(8*second, func() bool {
		for _, s := range sides {
			if r.state(s) != bldc.Going {
				return false
			}
		}
		return true
	})
	if !ok {
		for _, s := range sides {
			t.Logf("%s: %s states %v", s, r.state(s), r.states[s])
		}
		t.Fatalf("Expected GOING within 8s, faults %v", r.faults)
	}
}

func (r *rig) assertStopped(t *testing.T, side bldc.Side) {
	t.Helper()
	m := bldc.Get(side)
	cfg := m.Config()
	if m.State() != bldc.Stopped {
		t.Errorf("%s: expected STOPPED, got %s", side, m.State())
	}
	for _, pin := range cfg.PhasePins {
		if d := r.bench.PWM.Duty(pin); d != 0 {
			t.Errorf("%s: expected zero duty on pin %d, got %d", side, pin, d)
		}
	}
	if r.bench.Gates.Enabled(cfg.Gate) {
		t.Errorf("%s: expected bridge disabled", side)
	}
}

var startSequence = []bldc.State{
	bldc.Starting, bldc.SettingUp, bldc.ReadyToTransition, bldc.Transitioning, bldc.Going,
}

func TestReachesGoingWithoutSkippingStates(t *testing.T) {
	for _, rpm := range []int16{bldc.MinSpeed, 120, bldc.MaxSpeed, -120} {
		t.Run(core.Itoa(int(rpm)), func(t *testing.T) {
			p := sim.DefaultRotorParams()
			r := newRig(t, p, p, true)

			bldc.Speeds(rpm, rpm)
			r.runUntilGoing(t, bldc.Left, bldc.Right)

			for _, side := range []bldc.Side{bldc.Left, bldc.Right} {
				got := r.states[side]
				if len(got) < len(startSequence) {
					t.Fatalf("%s: expected states %v, got %v", side, startSequence, got)
				}
				for i := range startSequence {
					if got[i] != startSequence[i] {
						t.Fatalf("%s: expected states %v, got %v", side, startSequence, got)
					}
				}
				if d := bldc.Get(side).Status().Direction; (rpm > 0) != (d > 0) {
					t.Errorf("%s: expected direction of %d, got %d", side, rpm, d)
				}
				if v := r.rotors[side].Velocity; (rpm > 0) != (v > 0) {
					t.Errorf("%s: expected rotor turning with sign of %d, got %.1f rad/s", side, rpm, v)
				}
			}
			if len(r.faults) != 0 {
				t.Errorf("Expected no faults, got %v", r.faults)
			}
		})
	}
}

func TestConvergesAndHolds120(t *testing.T) {
	p := sim.DefaultRotorParams()
	r := newRig(t, p, p, true)

	bldc.Speeds(120, 120)
	r.runUntilGoing(t, bldc.Left, bldc.Right)
	r.bench.Run(5 * second)

	var sum [2]float64
	samples := 0
	for i := 0; i < 40; i++ {
		r.bench.Run(bldc.SpeedSamplePeriod)
		samples++
		for _, side := range []bldc.Side{bldc.Left, bldc.Right} {
			s := bldc.Get(side).Status()
			if s.State != bldc.Going {
				t.Fatalf("%s: expected to hold GOING, got %s", side, s.State)
			}
			if s.Speed < 114 || s.Speed > 126 {
				t.Errorf("%s: measured %d RPM, expected 120 +-6", side, s.Speed)
			}
			sum[side] += r.rotors[side].RPM()
		}
	}
	for side := range sum {
		mean := sum[side] / float64(samples)
		if math.Abs(mean-120) > 3 {
			t.Errorf("%s: mean rotor speed %.1f RPM, expected 120 +-3", bldc.Side(side), mean)
		}
	}
}

func TestDutyCounterSwapsOnlyAtWraparound(t *testing.T) {
	p := sim.DefaultRotorParams()
	r := newRig(t, p, p, true)

	bldc.Speeds(120, 120)
	r.runUntilGoing(t, bldc.Left)

	m := bldc.Get(bldc.Left)
	prev := m.Status()
	swaps := 0
	check := func() bool {
		s := m.Status()
		if s.State != bldc.Going {
			t.Fatalf("Expected to stay GOING, got %s", s.State)
		}
		if s.TimerDutyCnt >= bldc.DutySteps {
			t.Fatalf("timerDutyCnt %d out of range", s.TimerDutyCnt)
		}
		if s.NewTable != prev.NewTable {
			swaps++
			if s.TimerDutyCnt != 0 {
				t.Errorf("Table swapped at timerDutyCnt %d, expected 0", s.TimerDutyCnt)
			}
		}
		if s.Pwm != prev.Pwm && (s.TimerDutyCnt != 0 || s.NewTable == prev.NewTable) {
			t.Errorf("pwm changed %d -> %d without a swap at wraparound (cnt %d)", prev.Pwm, s.Pwm, s.TimerDutyCnt)
		}
		prev = s
		return false
	}

	r.bench.RunUntil(2*second, check)
	bldc.Speeds(200, 120)
	r.bench.RunUntil(2*second, check)

	if swaps < 2 {
		t.Errorf("Expected amplitude updates to swap tables, got %d swaps", swaps)
	}
}

func TestStallLeavesGoing(t *testing.T) {
	p := sim.DefaultRotorParams()
	r := newRig(t, p, p, true)

	bldc.Speeds(120, 120)
	r.runUntilGoing(t, bldc.Left, bldc.Right)

	hallLimit := uint32(2 * 60 * core.TimerFreq / (bldc.MinSpeed * 6 * p.PolePairs))
	r.rotors[bldc.Left].Locked = true
	edges := r.rotors[bldc.Left].Edges()
	start := core.GetTime()

	left := bldc.Get(bldc.Left)
	if !r.bench.RunUntil(hallLimit+2*bldc.SpeedSamplePeriod, func() bool { return left.State() != bldc.Going }) {
		t.Fatalf("Expected stall to leave GOING within %d ticks", hallLimit+2*bldc.SpeedSamplePeriod)
	}
	if r.rotors[bldc.Left].Edges() != edges {
		t.Fatal("Locked rotor produced hall edges")
	}
	s := left.Status()
	if s.State != bldc.Starting || s.Speed != 0 {
		t.Errorf("Expected STARTING at 0 RPM, got %s at %d RPM", s.State, s.Speed)
	}
	// the last edge came at most one edge interval before the lock
	if core.GetTime()-start < hallLimit-core.TimerFreq/100 {
		t.Errorf("Stall declared after %d ticks, before the %d tick limit", core.GetTime()-start, hallLimit)
	}
	if r.state(bldc.Right) != bldc.Going {
		t.Errorf("Expected right motor unaffected, got %s", r.state(bldc.Right))
	}

	// Still locked: the restart gives up
	r.bench.Run((bldc.StartTimeoutWindows + 2) * bldc.SpeedSamplePeriod)
	r.assertStopped(t, bldc.Left)
	if len(r.faults) != 1 || r.faults[0].side != bldc.Left || r.faults[0].err != bldc.ErrStall {
		t.Errorf("Expected one left ErrStall, got %v", r.faults)
	}
	if left.Status().TargetSpeed != 0 {
		t.Error("Expected fault to clear the target speed")
	}
}

func TestStopFromAnyState(t *testing.T) {
	for _, at := range []bldc.State{bldc.Starting, bldc.SettingUp, bldc.ReadyToTransition, bldc.Transitioning, bldc.Going, bldc.Stopped} {
		t.Run(at.String(), func(t *testing.T) {
			p := sim.DefaultRotorParams()
			r := newRig(t, p, p, true)

			if at == bldc.SettingUp {
				// without the foreground no table gets built
				r.bench.Foreground = nil
			}
			if at != bldc.Stopped {
				bldc.Speeds(120, 120)
				if !r.bench.RunUntil(8*second, func() bool { return r.state(bldc.Left) == at }) {
					t.Fatalf("Never reached %s, states %v", at, r.states[bldc.Left])
				}
			}

			bldc.Stop()
			r.assertStopped(t, bldc.Left)
			r.assertStopped(t, bldc.Right)

			bldc.Stop()
			r.bench.Run(bldc.SpeedSamplePeriod * 4)
			r.assertStopped(t, bldc.Left)
			r.assertStopped(t, bldc.Right)
			if len(r.faults) != 0 {
				t.Errorf("Expected no faults, got %v", r.faults)
			}
		})
	}
}

func TestCalibrationRoundTrip(t *testing.T) {
	lp := sim.DefaultRotorParams()
	lp.HallOffsetPos, lp.HallOffsetNeg, lp.HallDir = 2, 3, -1
	rp := sim.DefaultRotorParams()
	rp.HallOffsetPos, rp.HallOffsetNeg, rp.HallDir = 5, 5, 1
	r := newRig(t, lp, rp, false)

	if err := bldc.Calibrate(); err != nil {
		t.Fatalf("Calibrate failed: %v (faults %v)", err, r.faults)
	}

	for side, p := range map[bldc.Side]sim.RotorParams{bldc.Left: lp, bldc.Right: rp} {
		cfg := bldc.Get(side).Config()
		if !cfg.Calibrated {
			t.Errorf("%s: expected calibrated", side)
		}
		if cfg.OffsetDir != p.HallDir || cfg.OffsetPosHall != p.HallOffsetPos || cfg.OffsetNegHall != p.HallOffsetNeg {
			t.Errorf("%s: expected dir=%d pos=%d neg=%d, got dir=%d pos=%d neg=%d", side,
				p.HallDir, p.HallOffsetPos, p.HallOffsetNeg, cfg.OffsetDir, cfg.OffsetPosHall, cfg.OffsetNegHall)
		}
		r.assertStopped(t, side)
	}

	bldc.Speeds(120, -120)
	r.runUntilGoing(t, bldc.Left, bldc.Right)
	if len(r.faults) != 0 {
		t.Errorf("Expected no faults after calibration, got %v", r.faults)
	}
}

func TestCalibrationFailsOnDeadSensor(t *testing.T) {
	p := sim.DefaultRotorParams()
	r := newRig(t, p, p, false)
	r.rotors[bldc.Right].ForceCode(7)

	if err := bldc.Calibrate(); err != bldc.ErrCalibration {
		t.Fatalf("Expected ErrCalibration, got %v", err)
	}
	if !bldc.Get(bldc.Left).Config().Calibrated {
		t.Error("Expected left to calibrate")
	}
	if bldc.Get(bldc.Right).Config().Calibrated {
		t.Error("Expected right to stay uncalibrated")
	}
	if len(r.faults) != 1 || r.faults[0].side != bldc.Right || r.faults[0].err != bldc.ErrCalibration {
		t.Errorf("Expected one right ErrCalibration, got %v", r.faults)
	}
	r.assertStopped(t, bldc.Right)
}

func TestInvalidHallCodeFaults(t *testing.T) {
	p := sim.DefaultRotorParams()
	r := newRig(t, p, p, true)

	bldc.Speeds(120, 120)
	r.runUntilGoing(t, bldc.Left, bldc.Right)

	r.rotors[bldc.Left].ForceCode(0)
	r.assertStopped(t, bldc.Left)
	if len(r.faults) != 1 || r.faults[0].err != bldc.ErrHallSensor {
		t.Fatalf("Expected one ErrHallSensor, got %v", r.faults)
	}
	if bldc.Get(bldc.Left).LastFault() != bldc.ErrHallSensor {
		t.Errorf("Expected LastFault ErrHallSensor, got %v", bldc.Get(bldc.Left).LastFault())
	}

	r.bench.Run(bldc.SpeedSamplePeriod * 4)
	if len(r.faults) != 1 {
		t.Errorf("Expected the fault reported once, got %v", r.faults)
	}
	if r.state(bldc.Right) != bldc.Going {
		t.Errorf("Expected right to keep going, got %s", r.state(bldc.Right))
	}
}

func TestReverseRotationFaults(t *testing.T) {
	p := sim.DefaultRotorParams()
	r := newRig(t, p, p, true)

	bldc.Speeds(120, 120)
	r.runUntilGoing(t, bldc.Left)

	// Step the sensor one code backwards
	order := []uint8{1, 3, 2, 6, 4, 5}
	code := r.rotors[bldc.Left].HallCode()
	for i, c := range order {
		if c == code {
			r.rotors[bldc.Left].ForceCode(order[(i+5)%6])
			break
		}
	}

	r.assertStopped(t, bldc.Left)
	if len(r.faults) != 1 || r.faults[0].side != bldc.Left || r.faults[0].err != bldc.ErrDirection {
		t.Errorf("Expected one left ErrDirection, got %v", r.faults)
	}
}

func TestFaultStopsSibling(t *testing.T) {
	p := sim.DefaultRotorParams()
	r := newRig(t, p, p, true)

	cfgs := [2]bldc.MotorConfig{bldc.Get(bldc.Left).Config(), bldc.Get(bldc.Right).Config()}
	cfgs[bldc.Left].StopWithSibling = true
	if err := bldc.SetupAndInit(cfgs); err != nil {
		t.Fatalf("SetupAndInit failed: %v", err)
	}

	bldc.Speeds(120, 120)
	r.runUntilGoing(t, bldc.Left, bldc.Right)

	r.rotors[bldc.Left].ForceCode(7)
	r.assertStopped(t, bldc.Left)
	r.assertStopped(t, bldc.Right)
	if len(r.faults) != 1 || r.faults[0].side != bldc.Left {
		t.Errorf("Expected only the left fault reported, got %v", r.faults)
	}
}

func TestSpeedsClampsAndStops(t *testing.T) {
	p := sim.DefaultRotorParams()
	newRig(t, p, p, true)

	bldc.Speeds(1000, -5)
	l, r := bldc.Get(bldc.Left).Status(), bldc.Get(bldc.Right).Status()
	if l.TargetSpeed != bldc.MaxSpeed || l.Direction != 1 {
		t.Errorf("Expected left target %d forward, got %d dir %d", bldc.MaxSpeed, l.TargetSpeed, l.Direction)
	}
	if r.TargetSpeed != bldc.MinSpeed || r.Direction != -1 {
		t.Errorf("Expected right target %d reverse, got %d dir %d", bldc.MinSpeed, r.TargetSpeed, r.Direction)
	}
	if l.State != bldc.Starting || r.State != bldc.Starting {
		t.Errorf("Expected both STARTING, got %s %s", l.State, r.State)
	}
	if l.Pwm != bldc.StartPwm {
		t.Errorf("Expected start amplitude %d, got %d", bldc.StartPwm, l.Pwm)
	}

	bldc.Speeds(0, 0)
	for _, side := range []bldc.Side{bldc.Left, bldc.Right} {
		if s := bldc.Get(side).Status(); s.State != bldc.Stopped || s.TargetSpeed != 0 {
			t.Errorf("%s: expected STOPPED with no target, got %s target %d", side, s.State, s.TargetSpeed)
		}
	}
}

func TestReversalWaitsForStandstill(t *testing.T) {
	p := sim.DefaultRotorParams()
	r := newRig(t, p, p, true)

	bldc.Speeds(120, 120)
	r.runUntilGoing(t, bldc.Left)

	bldc.Speeds(-120, 120)
	left := bldc.Get(bldc.Left)
	if s := left.Status(); s.State != bldc.Stopped || s.Direction != 1 || s.TargetSpeed != 120 {
		t.Fatalf("Expected coasting STOPPED forward with target kept, got %s dir %d target %d", s.State, s.Direction, s.TargetSpeed)
	}

	var rpmAtRestart float64
	restarted := r.bench.RunUntil(4*second, func() bool {
		if left.State() == bldc.Starting {
			rpmAtRestart = r.rotors[bldc.Left].RPM()
			return true
		}
		return false
	})
	if !restarted {
		t.Fatalf("Expected restart in reverse, states %v", r.states[bldc.Left])
	}
	if math.Abs(rpmAtRestart) > 2 {
		t.Errorf("Expected restart at standstill, rotor at %.1f RPM", rpmAtRestart)
	}
	if left.Status().Direction != -1 {
		t.Errorf("Expected reverse direction, got %d", left.Status().Direction)
	}

	r.runUntilGoing(t, bldc.Left)
	if r.rotors[bldc.Left].Velocity >= 0 {
		t.Errorf("Expected rotor turning backwards, got %.1f rad/s", r.rotors[bldc.Left].Velocity)
	}
	if len(r.faults) != 0 {
		t.Errorf("Expected no faults, got %v", r.faults)
	}
}
