package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hallbldc/bldc"
	"hallbldc/config"
	"hallbldc/core"
	"hallbldc/sim"
)

var (
	leftRPM    int16
	rightRPM   int16
	duration   time.Duration
	interval   time.Duration
	calibrate  bool
	savePath   string
	hallPos    uint8
	hallNeg    uint8
	hallDir    int8
	loadTorque float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the controller against two simulated hub motors",
	Long: `Run the motor control core on the simulated bench and print a speed
and state trace for both motors.

The simulated hall sensors are mounted with --hall-pos, --hall-neg and
--hall-dir. An uncalibrated profile is calibrated first; --save writes the
calibrated profile back.`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.Int16VarP(&leftRPM, "left", "l", 120, "Left speed in RPM (sign gives direction)")
	f.Int16VarP(&rightRPM, "right", "r", 120, "Right speed in RPM (sign gives direction)")
	f.DurationVarP(&duration, "duration", "d", 8*time.Second, "Simulated run time")
	f.DurationVar(&interval, "interval", 250*time.Millisecond, "Trace period")
	f.BoolVar(&calibrate, "calibrate", false, "Calibrate even if the profile is calibrated")
	f.StringVar(&savePath, "save", "", "Write the profile with calibrated offsets to this file")
	f.Uint8Var(&hallPos, "hall-pos", 0, "Simulated hall offset, forward rotation")
	f.Uint8Var(&hallNeg, "hall-neg", 0, "Simulated hall offset, reverse rotation")
	f.Int8Var(&hallDir, "hall-dir", 1, "Simulated hall sequence direction (1 or -1)")
	f.Float64Var(&loadTorque, "load", 0, "External load torque on both rotors")
	rootCmd.AddCommand(simulateCmd)
}

func loadProfile() (*config.BoardConfig, error) {
	if configPath == "" {
		return config.DefaultBoardConfig(), nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	cfg, err := config.LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", configPath, err)
	}
	return cfg, nil
}

func ticks(d time.Duration) uint32 {
	return uint32(d / (time.Second / core.TimerFreq))
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if hallPos >= bldc.HallSectors || hallNeg >= bldc.HallSectors || (hallDir != 1 && hallDir != -1) {
		return fmt.Errorf("hall mounting (%d, %d, %d) out of range", hallPos, hallNeg, hallDir)
	}
	if interval <= 0 {
		return fmt.Errorf("trace interval must be positive")
	}

	profile, err := loadProfile()
	if err != nil {
		return err
	}
	cfgs, err := profile.MotorConfigs()
	if err != nil {
		return fmt.Errorf("motor pins: %w", err)
	}

	core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
	core.SetDebugEnabled(verbose)

	bench := sim.NewBench()
	var rotors [2]*sim.Rotor
	for i, mc := range cfgs {
		p := sim.DefaultRotorParams()
		p.PolePairs = int(mc.PolePairs)
		p.HallOffsetPos, p.HallOffsetNeg, p.HallDir = hallPos, hallNeg, hallDir
		rotors[i] = bench.AddRotor(p, mc.PhasePins, mc.Gate, mc.HallPins, 0.5+2*float64(i))
		rotors[i].Load = loadTorque
	}

	out := cmd.OutOrStdout()
	bldc.SetErrorHandler(func(side bldc.Side, err error) {
		fmt.Fprintf(out, "%8.3fs  fault %s: %v\n", seconds(), side, err)
	})
	defer bldc.SetErrorHandler(nil)

	if err := bldc.SetupAndInit(cfgs); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer bldc.Stop()

	rotors[bldc.Left].OnEdge = func() { bldc.HallISRCallback(bldc.Left) }
	rotors[bldc.Right].OnEdge = func() { bldc.HallISRCallback(bldc.Right) }
	bench.Foreground = bldc.PWMs
	core.SetIdleHook(bench.Idle)
	defer core.SetIdleHook(nil)

	if calibrate || !cfgs[0].Calibrated || !cfgs[1].Calibrated {
		if err := runCalibration(profile); err != nil {
			return err
		}
	}

	bldc.Speeds(leftRPM, rightRPM)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "time\tL state\tL rpm\tL pwm\tR state\tR rpm\tR pwm\t")
	end := ticks(duration)
	step := ticks(interval)
	for elapsed := uint32(0); elapsed < end; elapsed += step {
		bench.Run(step)
		l, r := bldc.Get(bldc.Left).Status(), bldc.Get(bldc.Right).Status()
		fmt.Fprintf(tw, "%.3fs\t%s\t%d\t%d\t%s\t%d\t%d\t\n",
			seconds(), l.State, l.Speed, l.Pwm, r.State, r.Speed, r.Pwm)
	}
	return tw.Flush()
}

func runCalibration(profile *config.BoardConfig) error {
	fmt.Fprintf(os.Stderr, "Calibrating hall offsets...\n")
	if err := bldc.Calibrate(); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	calibrated := [2]bldc.MotorConfig{
		bldc.Get(bldc.Left).Config(),
		bldc.Get(bldc.Right).Config(),
	}
	profile.UpdateCalibration(calibrated)
	for _, mc := range calibrated {
		fmt.Fprintf(os.Stderr, "  %s: dir %d, pos %d, neg %d\n",
			mc.Side, mc.OffsetDir, mc.OffsetPosHall, mc.OffsetNegHall)
	}

	if savePath == "" {
		return nil
	}
	data, err := config.SaveConfig(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(savePath, data, 0o644); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func seconds() float64 {
	return float64(core.GetUptime()) / core.TimerFreq
}
