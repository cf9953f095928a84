package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hallbldc/host/serial"
)

var (
	portName string
	baudRate int
	wsURL    string
	filter   string
	noColor  bool
)

var (
	faultStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	stateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	timingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print the firmware debug UART",
	Long: `Follow the debug UART of a running board and print every line.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path (serial-to-WebSocket bridge)

Fault reports and timing ring dumps are highlighted, counted and
summarized when the stream ends.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVarP(&portName, "port", "p", "/dev/ttyUSB0", "Serial port device")
	monitorCmd.Flags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	monitorCmd.Flags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	monitorCmd.Flags().StringVarP(&filter, "filter", "f", "", "Only print lines containing this text")
	monitorCmd.Flags().BoolVar(&noColor, "no-color", false, "Do not highlight faults and state changes")
	rootCmd.AddCommand(monitorCmd)
}

func openDebugPort() (serial.Port, string, error) {
	if wsURL != "" {
		port, err := serial.OpenWebSocket(wsURL)
		return port, wsURL, err
	}

	cfg := serial.DefaultConfig(portName)
	cfg.Baud = baudRate
	cfg.ReadTimeout = 0 // block; a timeout would end the stream

	port, err := serial.Open(cfg)
	if err != nil {
		return nil, "", err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, "", fmt.Errorf("flush %s: %w", portName, err)
	}
	return port, fmt.Sprintf("%s at %d baud", portName, baudRate), nil
}

// highlight styles faults, state changes and timing dumps
func highlight(kind serial.LineKind, line string) string {
	switch kind {
	case serial.LineFault:
		return faultStyle.Render(line)
	case serial.LineState:
		return stateStyle.Render(line)
	case serial.LineTiming:
		return timingStyle.Render(line)
	default:
		return line
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	port, info, err := openDebugPort()
	if err != nil {
		return err
	}
	defer port.Close()

	var style serial.Styler
	if !noColor && term.IsTerminal(int(os.Stdout.Fd())) {
		style = highlight
	}

	fmt.Fprintf(os.Stderr, "Following %s, Ctrl+C to exit\n", info)
	stats, err := serial.Follow(port, cmd.OutOrStdout(), filter, style)
	fmt.Fprintf(os.Stderr, "%d lines, %d faults, %d timing dumps\n", stats.Lines, stats.Faults, stats.Dumps)
	return err
}
