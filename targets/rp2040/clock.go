//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"hallbldc/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// InitClock loads the core clock from the 1MHz hardware timer and makes
// blocking foreground waits keep it current
func InitClock() {
	UpdateSystemTime()
	core.TimerInit()
	core.SetIdleHook(func() {
		UpdateSystemTime()
		core.ProcessTimers()
	})
}

// GetHardwareTime reads the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime updates the core timer with hardware time
// Called from the main loop and from the hall interrupt
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
