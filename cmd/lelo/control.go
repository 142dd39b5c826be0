package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/lelo/internal/session"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive motor control",
	Long: `Connect, authorize and read motor commands from stdin, one per line.
Telemetry is printed while the session is open.

Commands:
  speed <main> <vibration>   set both motor speeds (0-100)
  main <n>                   set the main motor, keep the vibration motor
  vibration <n>              set the vibration motor, keep the main motor
  stop                       stop both motors
  calibrate                  calibrate the accelerometer
  shutdown                   power the device off and exit
  status                     print session state and last motor speed
  help                       print this list
  quit                       disconnect and exit`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

var (
	controlAddress   string
	controlTelemetry bool
)

func init() {
	controlCmd.Flags().StringVarP(&controlAddress, "address", "a", "", "Device address (default: first device found)")
	controlCmd.Flags().BoolVar(&controlTelemetry, "telemetry", false, "Print telemetry events while controlling")
}

// commander is the command surface the control loop drives.
type commander interface {
	SetMotorSpeed(ctx context.Context, speed session.MotorSpeed) error
	StopMotors(ctx context.Context) error
	CalibrateAccelerometer(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

const controlHelp = `speed <main> <vibration> | main <n> | vibration <n> | stop | calibrate | shutdown | status | quit`

// runControlLoop executes commands read from in until quit, shutdown, EOF or
// ctx ends. Command errors are printed and the loop continues, unless the
// session is gone.
func runControlLoop(ctx context.Context, in io.Reader, out io.Writer, ctl commander, status func() string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var current session.MotorSpeed
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		fmt.Fprint(out, "> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case err := <-readErr:
			fmt.Fprintln(out)
			return err
		case line = <-lines:
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		var err error
		switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			fmt.Fprintln(out, controlHelp)
			continue
		case "status":
			fmt.Fprintln(out, status())
			continue
		case "speed", "s":
			if len(args) != 2 {
				err = errors.New("usage: speed <main> <vibration>")
				break
			}
			var speed session.MotorSpeed
			if speed, err = parseSpeed(args[0], args[1]); err == nil {
				err = setSpeed(ctx, ctl, &current, speed)
			}
		case "main", "vibration", "vib":
			if len(args) != 1 {
				err = fmt.Errorf("usage: %s <n>", cmd)
				break
			}
			var v int
			if v, err = parsePercent(cmd, args[0]); err == nil {
				speed := current
				if cmd == "main" {
					speed.Main = v
				} else {
					speed.Vibration = v
				}
				err = setSpeed(ctx, ctl, &current, speed)
			}
		case "stop":
			if err = ctl.StopMotors(ctx); err == nil {
				current = session.MotorSpeed{}
			}
		case "calibrate":
			err = ctl.CalibrateAccelerometer(ctx)
		case "shutdown":
			if err = ctl.Shutdown(ctx); err == nil {
				fmt.Fprintln(out, "ok")
				return nil
			}
		default:
			err = fmt.Errorf("unknown command '%s' (try help)", cmd)
		}

		if err != nil {
			var stateErr *session.InvalidStateError
			if errors.As(err, &stateErr) {
				return err
			}
			fmt.Fprintf(out, "error: %s\n", FormatUserError(err))
			continue
		}
		fmt.Fprintln(out, "ok")
	}
}

func setSpeed(ctx context.Context, ctl commander, current *session.MotorSpeed, speed session.MotorSpeed) error {
	if err := ctl.SetMotorSpeed(ctx, speed); err != nil {
		return err
	}
	*current = speed
	return nil
}

// sessionStatus renders a one-line summary of the active session.
func sessionStatus(ctl *session.Controller) string {
	s := ctl.Session()
	if s == nil {
		return "no session"
	}
	status := fmt.Sprintf("state=%s authorization=%s device=%s", s.State(), s.Authorization(), s.Device().Address)
	if ms, ok := s.LastMotorSpeed(); ok {
		status += fmt.Sprintf(" main=%d vibration=%d", ms.Main, ms.Vibration)
	}
	return status
}

func runControl(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, stop := signalContext(cmd)
	defer stop()

	r := newRenderer(cmd.ErrOrStderr(), "text", cfg.HistorySize, logger)
	var sink session.EventSink = lifecycleOnly(r)
	if controlTelemetry {
		sink = r
	}

	ctl, err := openSession(ctx, cfg, logger, controlAddress, sink)
	if err != nil {
		return err
	}
	defer func() { _ = ctl.Disconnect() }()

	// The loop ends early when the link drops.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ctl.Session().Done():
			cancel()
		case <-loopCtx.Done():
		}
	}()

	err = runControlLoop(loopCtx, cmd.InOrStdin(), cmd.OutOrStdout(), ctl, func() string { return sessionStatus(ctl) })
	if err == nil && ctx.Err() == nil && ctl.Session().Closed() {
		return session.ErrLinkLost
	}
	return err
}
