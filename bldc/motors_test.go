package bldc

import (
	"testing"

	"hallbldc/core"
	"hallbldc/sim"
)

func testConfigs(leftMask, rightMask uint8) [numMotors]MotorConfig {
	return [numMotors]MotorConfig{
		{
			Side:       Left,
			PhasePins:  [3]core.PWMPin{0, 1, 2},
			Gate:       0,
			HallPins:   [3]core.GPIOPin{10, 11, 12},
			TSBitmask:  leftMask,
			OffsetDir:  1,
			PolePairs:  15,
			Calibrated: true,
		},
		{
			Side:       Right,
			PhasePins:  [3]core.PWMPin{3, 4, 5},
			Gate:       1,
			HallPins:   [3]core.GPIOPin{13, 14, 15},
			TSBitmask:  rightMask,
			OffsetDir:  1,
			PolePairs:  15,
			Calibrated: true,
		},
	}
}

func TestSetupAndInit(t *testing.T) {
	b := sim.NewBench()
	if err := SetupAndInit(testConfigs(1, 2)); err != nil {
		t.Fatalf("SetupAndInit failed: %v", err)
	}
	defer Stop()

	for _, side := range []Side{Left, Right} {
		m := Get(side)
		if m.State() != Stopped {
			t.Errorf("%s: expected STOPPED, got %s", side, m.State())
		}
		if m.Sibling().Side() == side {
			t.Errorf("%s: sibling points at itself", side)
		}
		for _, pin := range m.cfg.HallPins {
			if b.GPIO.Mode(pin) != sim.PinPullUp {
				t.Errorf("%s: expected hall pin %d pulled up", side, pin)
			}
		}
		if b.Gates.Enabled(m.cfg.Gate) {
			t.Errorf("%s: expected bridge disabled", side)
		}
	}
	if numSpeedTimer != 2 {
		t.Errorf("Expected 2 speed timers for disjoint masks, got %d", numSpeedTimer)
	}
}

func TestSetupSharesSpeedTimer(t *testing.T) {
	sim.NewBench()
	if err := SetupAndInit(testConfigs(1, 3)); err != nil {
		t.Fatalf("SetupAndInit failed: %v", err)
	}
	defer Stop()

	if numSpeedTimer != 1 || speedTimers[0].mask != 3 {
		t.Errorf("Expected one shared timer with mask 3, got %d timers mask %d", numSpeedTimer, speedTimers[0].mask)
	}
}

func TestSetupRejectsBadConfig(t *testing.T) {
	sim.NewBench()

	cfgs := testConfigs(1, 2)
	cfgs[1].HallPins[2] = cfgs[1].HallPins[0]
	if err := SetupAndInit(cfgs); err != ErrBadConfig {
		t.Errorf("Expected ErrBadConfig for duplicate hall pins, got %v", err)
	}

	cfgs = testConfigs(1, 2)
	cfgs[0].OffsetDir = 0
	if err := SetupAndInit(cfgs); err != ErrBadConfig {
		t.Errorf("Expected ErrBadConfig for zero OffsetDir, got %v", err)
	}

	cfgs = testConfigs(1, 2)
	cfgs[0].Side, cfgs[1].Side = Right, Left
	if err := SetupAndInit(cfgs); err != ErrBadConfig {
		t.Errorf("Expected ErrBadConfig for swapped sides, got %v", err)
	}
}

func TestSpeedCallbackMask(t *testing.T) {
	sim.NewBench()
	if err := SetupAndInit(testConfigs(1, 2)); err != nil {
		t.Fatalf("SetupAndInit failed: %v", err)
	}
	defer Stop()

	for i := range motors {
		motors[i].quiet = 0
	}
	SpeedISRCallback(2)

	if motors[Left].quiet != 0 {
		t.Errorf("Expected left untouched by mask 2, got quiet %d", motors[Left].quiet)
	}
	if motors[Right].quiet != SpeedSamplePeriod {
		t.Errorf("Expected right to run one window, got quiet %d", motors[Right].quiet)
	}
}

func TestSpeedsRefusesUncalibrated(t *testing.T) {
	sim.NewBench()
	cfgs := testConfigs(1, 1)
	cfgs[0].Calibrated = false
	if err := SetupAndInit(cfgs); err != nil {
		t.Fatalf("SetupAndInit failed: %v", err)
	}
	defer Stop()

	var got []error
	SetErrorHandler(func(side Side, err error) {
		if side == Left {
			got = append(got, err)
		}
	})
	defer SetErrorHandler(nil)

	Speeds(100, 0)
	if len(got) != 1 || got[0] != ErrNotCalibrated {
		t.Errorf("Expected one ErrNotCalibrated, got %v", got)
	}
	if s := Get(Left).Status(); s.State != Stopped || s.TargetSpeed != 0 {
		t.Errorf("Expected left STOPPED with no target, got %s target %d", s.State, s.TargetSpeed)
	}
}
