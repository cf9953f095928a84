//go:build !wasm

package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// UARTPort is a debug UART opened through tarm/serial
type UARTPort struct {
	*serial.Port
	device string
}

// Open opens the debug UART described by cfg
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, fmt.Errorf("no serial device given")
	}
	if cfg.Baud <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", cfg.Baud)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &UARTPort{Port: port, device: cfg.Device}, nil
}

// String names the device
func (p *UARTPort) String() string {
	return p.device
}
