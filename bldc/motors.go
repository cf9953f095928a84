package bldc

import (
	"math"

	"hallbldc/core"
)

var motors [numMotors]Motor

// speedTimer is a speed sample tick serving every motor whose TSBitmask
// intersects mask
type speedTimer struct {
	timer core.Timer
	mask  uint8
}

var (
	speedTimers   [numMotors]speedTimer
	numSpeedTimer int
)

// Get returns the motor on a side
func Get(side Side) *Motor {
	return &motors[side%numMotors]
}

// SetupAndInit configures both motors on the installed HAL drivers,
// schedules their duty and speed timers and leaves them STOPPED.
func SetupAndInit(cfgs [numMotors]MotorConfig) error {
	for i := range cfgs {
		if err := cfgs[i].validate(); err != nil {
			return err
		}
		if cfgs[i].Side != Side(i) {
			return ErrBadConfig
		}
	}

	pwm := core.MustPWM()
	gpio := core.MustGPIO()
	gates := core.MustGates()

	for i := range speedTimers {
		core.DeleteTimer(&speedTimers[i].timer)
	}
	for i := range motors {
		core.DeleteTimer(&motors[i].dutyTimer)
	}

	now := core.GetTime()
	for i := range motors {
		m := &motors[i]
		*m = Motor{
			cfg:              cfgs[i],
			index:            uint8(i),
			sibling:          uint8(Side(i).other()),
			state:            Stopped,
			reported:         Stopped,
			pwmDrv:           pwm,
			gpio:             gpio,
			gates:            gates,
			direction:        1,
			pendingDirection: 1,
			quiet:            math.MaxUint32,
			dutyInterval:     idleDutyInterval,
		}
		m.hallLimit = m.cfg.hallLimit()

		for _, pin := range m.cfg.HallPins {
			if err := gpio.ConfigureInput(pin, core.PullUp); err != nil {
				return err
			}
		}
		for _, pin := range m.cfg.PhasePins {
			if _, err := pwm.ConfigureHardwarePWM(pin, core.TimerFreq/PWMFrequency); err != nil {
				return err
			}
		}
		if err := gates.Init(m.cfg.Gate); err != nil {
			return err
		}
		gates.SetEnabled(m.cfg.Gate, false)
		m.top = pwm.GetMaxValue()

		m.tables.build(slotStart, waveTrapezoid, m.top, StartPwm)
		m.tables.reset()
		m.writePhases([3]uint32{})

		m.dutyTimer.Handler = m.dutyEvent
		m.dutyTimer.WakeTime = now + m.dutyInterval
		core.ScheduleTimer(&m.dutyTimer)
	}

	scheduleSpeedTimers(now)
	core.DebugPrintln("[BLDC] motors ready, speed timers=" + core.Itoa(numSpeedTimer))
	return nil
}

// scheduleSpeedTimers gives motors with overlapping bitmasks one shared
// timer and the others a timer each
func scheduleSpeedTimers(now uint32) {
	numSpeedTimer = 0
	l, r := motors[Left].cfg.TSBitmask, motors[Right].cfg.TSBitmask
	masks := []uint8{l, r}
	if l&r != 0 {
		masks = []uint8{l | r}
	}
	for _, mask := range masks {
		st := &speedTimers[numSpeedTimer]
		st.mask = mask
		st.timer.Handler = st.event
		st.timer.WakeTime = now + SpeedSamplePeriod
		core.ScheduleTimer(&st.timer)
		numSpeedTimer++
	}
}

func (st *speedTimer) event(t *core.Timer) uint8 {
	SpeedISRCallback(st.mask)
	t.WakeTime += SpeedSamplePeriod
	return core.SF_RESCHEDULE
}

// Speeds sets signed target speeds in RPM. Zero stops a motor, other
// magnitudes are clamped to [MinSpeed, MaxSpeed].
func Speeds(left, right int16) {
	motors[Left].command(left)
	motors[Right].command(right)
}

// PWMs is the foreground maintenance pass. It builds tables for motors that
// need one and flushes debug output.
func PWMs() {
	for i := range motors {
		motors[i].maintain()
		motors[i].report()
	}
}

// Stop stops both motors immediately. Safe to call in any state.
func Stop() {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	for i := range motors {
		if motors[i].gates == nil {
			continue // never set up
		}
		motors[i].targetSpeed = 0
		motors[i].enterStopped()
	}
}

// HallISRCallback is the hall pin-change entry point
func HallISRCallback(side Side) {
	if side < numMotors {
		motors[side].HallISR()
	}
}

// DutyISRCallback is the duty timer entry point for hardware timers
// that do not go through the core scheduler
func DutyISRCallback(side Side) {
	if side < numMotors {
		motors[side].DutyISR()
	}
}

// SpeedISRCallback is the speed sample entry point
func SpeedISRCallback(mask uint8) {
	for i := range motors {
		if motors[i].cfg.TSBitmask&mask != 0 {
			motors[i].SpeedISR()
		}
	}
}
