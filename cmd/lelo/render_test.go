package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/srg/lelo/internal/codec"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/srg/lelo/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderTime = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.Local)

func sampleEvents() []session.Event {
	return []session.Event{
		{Kind: session.EventFoundDevice, Time: renderTime, DeviceName: "F1s"},
		{Kind: session.EventSecurityAcceptRequired, Time: renderTime},
		{Kind: session.EventFullyInitiated, Time: renderTime, DeviceName: "F1s"},
		{Kind: session.EventCharacteristicUpdate, Time: renderTime, Name: "batteryLevel", Value: 85},
		{Kind: session.EventMotorSpeedUpdate, Time: renderTime, Motor: codec.MotorSpeed{Main: 50, Vibration: 25}},
		{Kind: session.EventPositionUpdate, Time: renderTime, Position: codec.Position{X: 16, Y: -32, Z: -48, Direction: true}},
		{Kind: session.EventCharacteristicUpdate, Time: renderTime, Name: "batteryLevel", Value: 84},
		{Kind: session.EventDisconnected, Time: renderTime},
	}
}

func testRenderer(w io.Writer, format string, historySize int) *renderer {
	logger, _ := test.NewNullLogger()
	return newRenderer(w, format, historySize, logger)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestRenderer_Text(t *testing.T) {
	// GOAL: Verify every event kind renders as one timestamped line
	//
	// TEST SCENARIO: Full session event sequence → text lines in order

	var out bytes.Buffer
	r := testRenderer(&out, "text", 64)
	for _, e := range sampleEvents() {
		require.NoError(t, r.Render(e))
	}

	expected := strings.Join([]string{
		"09:26:53.589 Found F1s, authorizing...",
		"09:26:53.589 Press the button on the device to accept the connection",
		"09:26:53.589 Connected to F1s",
		"09:26:53.589 batteryLevel=85",
		"09:26:53.589 motor main=50 vibration=25",
		"09:26:53.589 position x=16 y=-32 z=-48 direction=true",
		"09:26:53.589 batteryLevel=84",
		"09:26:53.589 Disconnected",
	}, "\n") + "\n"
	assert.Equal(t, expected, out.String())
}

func TestRenderer_ErrorEvent(t *testing.T) {
	var out bytes.Buffer
	r := testRenderer(&out, "text", 8)
	require.NoError(t, r.Render(session.Event{Kind: session.EventErrorConnecting, Time: renderTime, Message: "could not authorize"}))

	assert.Equal(t, "09:26:53.589 Connection failed: could not authorize\n", out.String())
}

func TestRenderer_JSONLines(t *testing.T) {
	var out bytes.Buffer
	r := testRenderer(&out, "json", 8)
	for _, e := range sampleEvents()[3:5] {
		require.NoError(t, r.Render(e))
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var battery, motor map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &battery))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &motor))
	assert.Equal(t, "characteristicIntUpdate", battery["event"])
	assert.Equal(t, "batteryLevel", battery["name"])
	assert.EqualValues(t, 85, battery["value"])
	assert.Equal(t, map[string]any{"mainMotor": float64(50), "vibrationMotor": float64(25)}, motor["motor"])
}

// squash collapses column padding so table assertions do not depend on widths.
func squash(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}

func TestRenderer_Summary(t *testing.T) {
	// GOAL: Verify the summary lists the latest value per reading in first-seen order, then the history
	//
	// TEST SCENARIO: batteryLevel twice, motor, position → latest batteryLevel 84 → history holds every reading

	r := testRenderer(&bytes.Buffer{}, "text", 64)
	for _, e := range sampleEvents() {
		require.NoError(t, r.Render(e))
	}

	var out bytes.Buffer
	require.NoError(t, r.Summary(&out))

	assert.Equal(t, strings.Join([]string{
		"READING LATEST",
		"batteryLevel 84",
		"mainMotor 50",
		"vibrationMotor 25",
		"x 16",
		"y -32",
		"z -48",
		"",
		"HISTORY",
		"09:26:53.589 batteryLevel=85",
		"09:26:53.589 mainMotor=50",
		"09:26:53.589 vibrationMotor=25",
		"09:26:53.589 x=16",
		"09:26:53.589 y=-32",
		"09:26:53.589 z=-48",
		"09:26:53.589 batteryLevel=84",
		"",
	}, "\n"), squash(out.String()))
}

func TestRenderer_SummaryBoundedHistory(t *testing.T) {
	r := testRenderer(&bytes.Buffer{}, "text", 2)
	for _, e := range sampleEvents() {
		require.NoError(t, r.Render(e))
	}

	var out bytes.Buffer
	require.NoError(t, r.Summary(&out))

	assert.Contains(t, out.String(), "older readings dropped")
	assert.Contains(t, out.String(), "batteryLevel=84", "The newest reading MUST survive")
}

func TestRenderer_NoTelemetry(t *testing.T) {
	r := testRenderer(&bytes.Buffer{}, "text", 8)
	var out bytes.Buffer
	require.NoError(t, r.Summary(&out))
	assert.Equal(t, "No telemetry received\n", out.String())
}

func TestReadingsOf(t *testing.T) {
	assert.Empty(t, readingsOf(session.Event{Kind: session.EventFullyInitiated}))
	assert.Len(t, readingsOf(session.Event{Kind: session.EventPositionUpdate}), 3)
}

func TestRenderer_EmitLogsRenderFailure(t *testing.T) {
	// GOAL: Verify Emit reports a failed write through the logger instead of discarding it
	//
	// TEST SCENARIO: Writer fails → Emit → one warning carrying the event kind and the cause

	logger, hook := test.NewNullLogger()
	r := newRenderer(failingWriter{}, "text", 8, logger)

	r.Emit(session.Event{Kind: session.EventDisconnected, Time: renderTime})

	require.Len(t, hook.AllEntries(), 1, "Render failure MUST be logged")
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, session.EventDisconnected, entry.Data["event"], "Warning MUST name the event")
	cause, ok := entry.Data["error"].(error)
	require.True(t, ok, "Warning MUST carry the error")
	assert.EqualError(t, cause, "broken pipe")
}
