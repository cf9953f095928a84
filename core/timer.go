package core

import "sync/atomic"

// Timer frequencies for common MCUs
const (
	TimerFreq = 1000000 // 1MHz, matches the RP2040 microsecond timer
)

var (
	systemTicks uint32 // written by the main loop and the hall interrupt
	bootTime    uint64 // Time at boot for uptime calculation

	// idleHook runs while WaitTicks spins; targets and simulators replace it
	idleHook = ProcessTimers
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// GetUptime returns 64-bit uptime in timer ticks
func GetUptime() uint64 {
	return uint64(GetTime()) - bootTime
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32((uint64(us) * TimerFreq) / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32((uint64(ticks) * 1000000) / TimerFreq)
}

// TimerFromMS converts milliseconds to timer ticks
func TimerFromMS(ms uint32) uint32 {
	return uint32((uint64(ms) * TimerFreq) / 1000)
}

// TimerInit initializes the system timer
func TimerInit() {
	bootTime = uint64(GetTime())
}

// ProcessTimers processes scheduled timers
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}

// SetIdleHook replaces the function WaitTicks calls while it waits.
// Targets refresh the hardware clock in it, the simulator advances the bench.
func SetIdleHook(hook func()) {
	if hook == nil {
		hook = ProcessTimers
	}
	idleHook = hook
}

// WaitTicks blocks the foreground for the given number of ticks while
// keeping scheduled timers running. Never call it from a timer handler.
func WaitTicks(ticks uint32) {
	start := GetTime()
	for GetTime()-start < ticks {
		idleHook()
	}
}
