package main

import (
	"github.com/spf13/cobra"
)

var (
	// Board profile shared by all commands
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bldc-host",
	Short: "Host tools for the dual hall BLDC controller",
	Long: `bldc-host drives the motor control core on a simulated two-motor
bench and follows the debug output of a running board.

  simulate: run the controller against simulated rotors
  monitor:  print the firmware debug UART`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Board profile (JSON), defaults to the reference board")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable controller debug output")
}
