//go:build rp2040

package main

import (
	"machine"

	"hallbldc/core"
)

var debugUART *machine.UART

// InitDebugUART initializes UART1 on GPIO24 (TX) and GPIO25 (RX)
// and routes core debug output to it
// Baud rate: 115200
func InitDebugUART() {
	debugUART = machine.UART1

	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO24,
		RX:       machine.GPIO25,
	})
	if err != nil {
		debugUART = nil
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.InitAsyncDebug()
	core.DebugPrintln("=== hall BLDC debug UART, 115200 baud ===")
}
