//go:build rp2040

package main

import (
	_ "embed"
	"machine"
	"runtime"
	"sync/atomic"
	"time"

	"hallbldc/bldc"
	"hallbldc/config"
	"hallbldc/core"
	"hallbldc/targets/pio"
)

//go:embed board.json
var boardJSON []byte

// faults counts faults reported since boot; non-zero blinks the LED
var faults uint32

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	cfg, err := config.LoadConfig(boardJSON)
	if err != nil {
		cfg = config.DefaultBoardConfig()
	}

	InitDebugUART()
	core.SetDebugEnabled(cfg.Debug)
	if err != nil {
		core.DebugPrintln("board.json rejected, using defaults: " + err.Error())
	}

	InitClock()

	core.SetGPIODriver(NewRPGPIODriver())
	core.SetPWMDriver(NewRP2040PWMDriver())
	gateBase, err := config.ParsePin(cfg.GateBase)
	if err != nil {
		halt()
	}
	pio.InitGates(cfg.GateBackend, uint8(gateBase))

	bldc.SetErrorHandler(onFault)

	mcs, err := cfg.MotorConfigs()
	if err != nil {
		core.DebugPrintln("bad motor pins: " + err.Error())
		halt()
	}
	if err := bldc.SetupAndInit(mcs); err != nil {
		core.DebugPrintln("motor init failed: " + err.Error())
		halt()
	}
	for i, mc := range mcs {
		if err := WatchHall(bldc.Side(i), mc.HallPins); err != nil {
			core.DebugPrintln("hall interrupt: " + err.Error())
			halt()
		}
	}

	if !cfg.Left.Calibrated || !cfg.Right.Calibrated {
		calibrate(cfg)
	}

	bldc.Speeds(cfg.LeftRPM, cfg.RightRPM)

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	lastReport := core.GetTime()

	for {
		// Recover from panics in the main loop; the bridges must not
		// stay energized behind a crashed loop
		func() {
			defer func() {
				if r := recover(); r != nil {
					bldc.Stop()
					atomic.AddUint32(&faults, 1)
				}
			}()

			UpdateSystemTime()
			core.ProcessTimers()
			bldc.PWMs()
		}()

		if now := core.GetTime(); now-lastReport >= core.TimerFreq {
			lastReport = now
			reportSpeeds()
		}

		led.Set(atomic.LoadUint32(&faults) != 0 && core.GetTime()&(1<<17) != 0)

		// Let the debug worker drain
		runtime.Gosched()
	}
}

// calibrate runs the hall sweep and prints the updated profile so it can
// be pasted into board.json
func calibrate(cfg *config.BoardConfig) {
	core.DebugPrintln("calibrating hall offsets")
	if err := bldc.Calibrate(); err != nil {
		core.DebugPrintln("calibration failed: " + err.Error())
		return
	}

	cfg.UpdateCalibration([2]bldc.MotorConfig{
		bldc.Get(bldc.Left).Config(),
		bldc.Get(bldc.Right).Config(),
	})
	data, err := config.SaveConfig(cfg)
	if err != nil {
		return
	}
	core.DebugPrintln(string(data))
}

// onFault runs in interrupt context; the fault itself is logged by
// bldc.PWMs from the main loop
func onFault(side bldc.Side, err error) {
	atomic.AddUint32(&faults, 1)
}

// reportSpeeds queues one status line without waiting for the UART
func reportSpeeds() {
	l, r := bldc.Get(bldc.Left).Status(), bldc.Get(bldc.Right).Status()
	core.DebugAsync("speed L=" + core.Utoa(uint32(l.Speed)) + " pwm=" + core.Utoa(uint32(l.Pwm)) +
		" R=" + core.Utoa(uint32(r.Speed)) + " pwm=" + core.Utoa(uint32(r.Pwm)))
}

// halt floats both bridges and blinks the LED rapidly forever
func halt() {
	bldc.Stop()
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
