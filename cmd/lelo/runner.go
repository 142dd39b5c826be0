package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/devicefactory"
	"github.com/srg/lelo/internal/scanner"
	"github.com/srg/lelo/internal/session"
	"github.com/srg/lelo/pkg/config"
)

// resolveDevice returns the device at address, or the first device advertising
// the control service when address is empty.
func resolveDevice(ctx context.Context, cfg *config.Config, logger *logrus.Logger, address string) (device.Device, error) {
	if address != "" {
		return devicefactory.NewDevice(address, logger), nil
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = cfg.ScanTimeout
	dev, err := scanner.NewScanner(logger).FindFirst(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"device": dev.Name(), "address": dev.Address()}).Info("Using first discovered device")
	return dev, nil
}

// openSession resolves the device and runs a session up to authorization.
// Events go to sink from the first connection attempt on.
func openSession(ctx context.Context, cfg *config.Config, logger *logrus.Logger, address string, sink session.EventSink) (*session.Controller, error) {
	dev, err := resolveDevice(ctx, cfg, logger, address)
	if err != nil {
		return nil, err
	}

	transport := session.NewDeviceTransport(dev, logger)
	transport.ConnectTimeout = cfg.ConnectTimeout
	transport.IOTimeout = cfg.IOTimeout

	ctl := session.NewController(transport, sink, cfg.SessionOptions(), logger)
	if err := ctl.InitConnection(ctx); err != nil {
		return nil, err
	}
	return ctl, nil
}

// eventPump drains an EventQueue into a renderer on its own goroutine, so slow
// output never stalls the session.
type eventPump struct {
	queue *session.EventQueue
	done  chan struct{}
}

func startPump(queue *session.EventQueue, r *renderer) *eventPump {
	p := &eventPump{queue: queue, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		for e := range queue.C() {
			r.Emit(e)
		}
	}()
	return p
}

// Close stops accepting events and waits until the buffered ones are rendered.
func (p *eventPump) Close() {
	p.queue.Close()
	<-p.done
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// outputFormat returns --format when set, otherwise the configured format.
func outputFormat(cmd *cobra.Command, cfg *config.Config) (string, error) {
	format := cfg.OutputFormat
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	if !slices.Contains(config.OutputFormats, format) {
		return "", fmt.Errorf("invalid format '%s': must be one of %v", format, config.OutputFormats)
	}
	return format, nil
}
