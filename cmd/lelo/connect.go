package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/lelo/internal/session"
)

var connectCmd = &cobra.Command{
	Use:     "connect",
	Aliases: []string{"monitor"},
	Short:   "Connect to a device and stream its telemetry",
	Long: `Connect to a LELO device, run the security handshake and print every
event until interrupted.

On the first connection the device reports a zero security token and the
command waits until the button on the device is pressed. Afterwards battery,
depth, hall sensor and accelerometer notifications are printed together with
the motor speed, which is polled once per motor_poll_interval.`,
	Example: `  lelo connect
  lelo connect --address C4:7C:8D:6A:00:01 --format json
  lelo monitor --duration 30s`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

var (
	connectAddress  string
	connectFormat   string
	connectDuration time.Duration
	connectSummary  bool
)

func init() {
	connectCmd.Flags().StringVarP(&connectAddress, "address", "a", "", "Device address (default: first device found)")
	connectCmd.Flags().StringVarP(&connectFormat, "format", "f", "text", "Output format (text, json)")
	connectCmd.Flags().DurationVarP(&connectDuration, "duration", "d", 0, "Disconnect after this long (0 = until Ctrl+C)")
	connectCmd.Flags().BoolVar(&connectSummary, "summary", true, "Print a telemetry summary on exit (text format)")
}

func runConnect(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd, cfg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	r := newRenderer(out, format, cfg.HistorySize, logger)
	pump := startPump(session.NewEventQueue(cfg.EventBuffer), r)

	ctl, err := openSession(ctx, cfg, logger, connectAddress, pump.queue)
	if err != nil {
		pump.Close()
		return err
	}

	var deadline <-chan time.Time
	if connectDuration > 0 {
		t := time.NewTimer(connectDuration)
		defer t.Stop()
		deadline = t.C
	}

	var runErr error
	select {
	case <-ctx.Done():
	case <-deadline:
	case <-ctl.Session().Done():
		runErr = session.ErrLinkLost
	}

	_ = ctl.Disconnect()
	pump.Close()

	if m := pump.queue.Metrics(); m.Dropped > 0 {
		logger.WithField("dropped", m.Dropped).Warn("Telemetry events were dropped by a slow consumer")
	}
	if connectSummary && format == "text" {
		fmt.Fprintln(out)
		if err := r.Summary(out); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}
