package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/srg/lelo/internal/session"
)

// commandAddress is shared by the one-shot commands.
var commandAddress string

var speedCmd = &cobra.Command{
	Use:   "speed <main> <vibration>",
	Short: "Set both motor speeds (0-100)",
	Long: `Connect, authorize and set the main and vibration motor speeds.

Speeds are percentages from 0 to 100. The device keeps running at the new
speed after the command disconnects.

Values starting with a dash are read as flags; put "--" before the speeds
to pass them through as arguments.`,
	Example: `  lelo speed 40 20
  lelo speed 0 80 --address C4:7C:8D:6A:00:01
  lelo speed -- 0 -1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		speed, err := parseSpeed(args[0], args[1])
		if err != nil {
			return err
		}
		return runCommand(cmd, fmt.Sprintf("Motor speed set to main=%d vibration=%d", speed.Main, speed.Vibration),
			func(ctx context.Context, ctl *session.Controller) error {
				return ctl.SetMotorSpeed(ctx, speed)
			})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop both motors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, "Motors stopped", func(ctx context.Context, ctl *session.Controller) error {
			return ctl.StopMotors(ctx)
		})
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Power the device off",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, "Device shut down", func(ctx context.Context, ctl *session.Controller) error {
			return ctl.Shutdown(ctx)
		})
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Calibrate the accelerometer",
	Long: `Calibrate the accelerometer. Keep the device still on a flat surface
while the command runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, "Accelerometer calibration started", func(ctx context.Context, ctl *session.Controller) error {
			return ctl.CalibrateAccelerometer(ctx)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{speedCmd, stopCmd, shutdownCmd, calibrateCmd} {
		c.Flags().StringVarP(&commandAddress, "address", "a", "", "Device address (default: first device found)")
	}
}

// parseSpeed converts two percentage arguments into a MotorSpeed.
func parseSpeed(mainArg, vibrationArg string) (session.MotorSpeed, error) {
	main, err := parsePercent("main", mainArg)
	if err != nil {
		return session.MotorSpeed{}, err
	}
	vibration, err := parsePercent("vibration", vibrationArg)
	if err != nil {
		return session.MotorSpeed{}, err
	}
	return session.MotorSpeed{Main: main, Vibration: vibration}, nil
}

func parsePercent(name, arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid %s speed '%s': must be a number", name, arg)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("invalid %s speed %d: must be between 0 and 100", name, v)
	}
	return v, nil
}

// runCommand opens a session, runs op once and disconnects. Lifecycle events
// go to stderr so stdout only carries the result line.
func runCommand(cmd *cobra.Command, done string, op func(context.Context, *session.Controller) error) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, stop := signalContext(cmd)
	defer stop()

	r := newRenderer(cmd.ErrOrStderr(), "text", 0, logger)
	ctl, err := openSession(ctx, cfg, logger, commandAddress, lifecycleOnly(r))
	if err != nil {
		return err
	}
	defer func() { _ = ctl.Disconnect() }()

	if err := op(ctx, ctl); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), done)
	return err
}

// lifecycleOnly forwards connection events and drops telemetry.
func lifecycleOnly(sink session.EventSink) session.EventSinkFunc {
	return func(e session.Event) {
		if e.Kind.IsLifecycle() {
			sink.Emit(e)
		}
	}
}
