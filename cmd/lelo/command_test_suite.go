//go:build test

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/devicefactory"
	"github.com/srg/lelo/internal/testutils"
)

const (
	TestDeviceAddress = "AA:BB:CC:DD:EE:FF"

	// testConfig keeps every protocol delay in the millisecond range.
	testConfig = `
log_level: error
scan_timeout: 200ms
connect_timeout: 1s
io_timeout: 1s
auth_poll_interval: 10ms
settle_delay: 5ms
motor_poll_interval: 20ms
`
)

// CommandTestSuite runs CLI commands against a mocked peripheral and a replayed scan.
type CommandTestSuite struct {
	testutils.MockPeripheralSuite

	ConfigPath      string
	Scanner         *testutils.FakeScanner
	originalFactory func() (device.ScanningDevice, error)
}

func (s *CommandTestSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = testutils.DefaultPeripheral()
		// non-zero token: authorized without waiting for the button
		s.PeripheralBuilder.Characteristic("FFF0", "0A10").Value = []byte{1, 0, 0, 0, 0, 0, 0, 0}
	}
	s.MockPeripheralSuite.SetupTest()

	s.ConfigPath = filepath.Join(s.T().TempDir(), "lelo.yaml")
	s.Require().NoError(os.WriteFile(s.ConfigPath, []byte(testConfig), 0o600))

	s.Scanner = &testutils.FakeScanner{Advertisements: []device.Advertisement{
		testutils.NewAdvertisementBuilder().
			WithAddress("11:22:33:44:55:66").
			WithName("Heart Rate").
			WithRSSI(-50).
			WithServices("180D").
			Build(),
		testutils.NewAdvertisementBuilder().
			WithAddress("AA:BB:CC:DD:EE:01").
			WithName("F1s").
			WithRSSI(-70).
			WithServices("FFF0").
			Build(),
		testutils.NewAdvertisementBuilder().
			WithAddress("AA:BB:CC:DD:EE:02").
			WithName("F1s V2").
			WithRSSI(-40).
			WithServices("180F", "FFF0").
			Build(),
	}}
	s.originalFactory = devicefactory.ScannerFactory
	devicefactory.ScannerFactory = func() (device.ScanningDevice, error) {
		return s.Scanner, nil
	}

	resetFlags()
}

func (s *CommandTestSuite) TearDownTest() {
	devicefactory.ScannerFactory = s.originalFactory
	s.MockPeripheralSuite.TearDownTest()
}

// resetFlags restores flag variables, which outlive a single Execute.
func resetFlags() {
	scanDuration, scanFormat, scanAll, scanAllowList, scanBlockList = 0, "text", false, nil, nil
	connectAddress, connectFormat, connectDuration, connectSummary = "", "text", 0, true
	commandAddress = ""
	controlAddress, controlTelemetry = "", false
}

// Execute runs the root command with the test config and returns stdout and stderr.
func (s *CommandTestSuite) Execute(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	err := s.ExecuteWith(strings.NewReader(""), &stdout, &stderr, args...)
	return stdout.String(), stderr.String(), err
}

func (s *CommandTestSuite) ExecuteWith(stdin io.Reader, stdout, stderr io.Writer, args ...string) error {
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(withConfig(args, s.ConfigPath))
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	}()
	return rootCmd.Execute()
}

// withConfig adds --config ahead of any "--" terminator so it is still parsed as a flag.
func withConfig(args []string, path string) []string {
	out := make([]string, 0, len(args)+2)
	for i, arg := range args {
		if arg == "--" {
			out = append(out, "--config", path)
			return append(out, args[i:]...)
		}
		out = append(out, arg)
	}
	return append(out, "--config", path)
}

// WatchWriter is a goroutine-safe buffer that can wait for output to appear.
type WatchWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	changed chan struct{}
}

func NewWatchWriter() *WatchWriter {
	return &WatchWriter{changed: make(chan struct{}, 1)}
}

func (w *WatchWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	select {
	case w.changed <- struct{}{}:
	default:
	}
	return n, err
}

func (w *WatchWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// WaitFor blocks until the output contains substr.
func (w *WatchWriter) WaitFor(substr string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if strings.Contains(w.String(), substr) {
			return true
		}
		select {
		case <-w.changed:
		case <-deadline:
			return false
		}
	}
}
