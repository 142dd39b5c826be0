package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/session"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/term"
)

const timeLayout = "15:04:05.000"

// reading is one telemetry value kept for the exit summary.
type reading struct {
	Time  time.Time
	Name  string
	Value int64
}

// renderer prints session events as text or JSON lines and keeps the latest
// reading per name plus a bounded history of readings.
type renderer struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	logger *logrus.Logger

	ok, warn, fail, dim *color.Color

	latest      *orderedmap.OrderedMap[string, int64]
	history     mpmc.RichOverlappedRingBuffer[reading]
	overwritten uint64
}

func newRenderer(w io.Writer, format string, historySize int, logger *logrus.Logger) *renderer {
	r := &renderer{
		w:       w,
		format:  format,
		logger:  logger,
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
		dim:     color.New(color.Faint),
		latest:  orderedmap.New[string, int64](),
		history: mpmc.NewOverlappedRingBuffer[reading](uint32(max(historySize, 2))),
	}
	r.setColors(isTerminal(w))
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *renderer) setColors(enabled bool) {
	for _, c := range []*color.Color{r.ok, r.warn, r.fail, r.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// Emit implements session.EventSink so the renderer can be used directly.
// Render failures are logged; a sink has no caller to return them to.
func (r *renderer) Emit(e session.Event) {
	if err := r.Render(e); err != nil {
		r.logger.WithFields(logrus.Fields{"event": e.Kind, "error": err}).Warn("Failed to render event")
	}
}

// Render prints one event and records its readings.
func (r *renderer) Render(e session.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rd := range readingsOf(e) {
		r.latest.Set(rd.Name, rd.Value)
		n, err := r.history.EnqueueM(rd)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		r.overwritten += uint64(n)
	}

	if r.format == "json" {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(r.w, string(data))
		return err
	}

	_, err := fmt.Fprintf(r.w, "%s %s\n", r.dim.Sprint(e.Time.Local().Format(timeLayout)), r.describe(e))
	return err
}

func (r *renderer) describe(e session.Event) string {
	switch e.Kind {
	case session.EventFoundDevice:
		return fmt.Sprintf("Found %s, authorizing...", e.DeviceName)
	case session.EventSecurityAcceptRequired:
		return r.warn.Sprint("Press the button on the device to accept the connection")
	case session.EventFullyInitiated:
		return r.ok.Sprintf("Connected to %s", e.DeviceName)
	case session.EventErrorConnecting:
		return r.fail.Sprintf("Connection failed: %s", e.Message)
	case session.EventDisconnected:
		return "Disconnected"
	case session.EventMotorSpeedUpdate:
		return fmt.Sprintf("motor main=%d vibration=%d", e.Motor.Main, e.Motor.Vibration)
	case session.EventPositionUpdate:
		return fmt.Sprintf("position x=%d y=%d z=%d direction=%t", e.Position.X, e.Position.Y, e.Position.Z, e.Position.Direction)
	case session.EventCharacteristicUpdate:
		return fmt.Sprintf("%s=%d", e.Name, e.Value)
	default:
		return string(e.Kind)
	}
}

// readingsOf flattens telemetry events into named values.
func readingsOf(e session.Event) []reading {
	switch e.Kind {
	case session.EventCharacteristicUpdate:
		return []reading{{Time: e.Time, Name: e.Name, Value: e.Value}}
	case session.EventMotorSpeedUpdate:
		return []reading{
			{Time: e.Time, Name: "mainMotor", Value: int64(e.Motor.Main)},
			{Time: e.Time, Name: "vibrationMotor", Value: int64(e.Motor.Vibration)},
		}
	case session.EventPositionUpdate:
		return []reading{
			{Time: e.Time, Name: "x", Value: int64(e.Position.X)},
			{Time: e.Time, Name: "y", Value: int64(e.Position.Y)},
			{Time: e.Time, Name: "z", Value: int64(e.Position.Z)},
		}
	default:
		return nil
	}
}

// Summary prints the latest value of every reading in first-seen order,
// followed by the buffered history. The history is drained.
func (r *renderer) Summary(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest.Len() == 0 {
		_, err := fmt.Fprintln(w, "No telemetry received")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "READING\tLATEST")
	for pair := r.latest.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(tw, "%s\t%s\n", pair.Key, strconv.FormatInt(pair.Value, 10))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if r.overwritten > 0 {
		fmt.Fprintf(w, "HISTORY (%d older readings dropped)\n", r.overwritten)
	} else {
		fmt.Fprintln(w, "HISTORY")
	}
	for !r.history.IsEmpty() {
		rd, err := r.history.Dequeue()
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		fmt.Fprintf(w, "%s %s=%d\n", rd.Time.Local().Format(timeLayout), rd.Name, rd.Value)
	}
	return nil
}
