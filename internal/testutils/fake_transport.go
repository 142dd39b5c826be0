//go:build test

package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/srg/lelo/internal/codec"
	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/session"
)

// ReadStep is one scripted result of a characteristic read.
type ReadStep struct {
	Data []byte
	Err  error
}

// Bytes is a successful ReadStep.
func Bytes(b ...byte) ReadStep {
	return ReadStep{Data: b}
}

// Fail is a failing ReadStep.
func Fail(err error) ReadStep {
	return ReadStep{Err: err}
}

// WriteRecord is one write seen by FakeTransport.
type WriteRecord struct {
	Service codec.ServiceID
	Char    codec.CharacteristicID
	Data    []byte
	Time    time.Time
}

type charKey struct {
	svc codec.ServiceID
	chr codec.CharacteristicID
}

// FakeTransport is a scripted session.Transport.
//
// Reads replay the per-characteristic script in order and repeat the last step
// once the script is exhausted. Writes are recorded. Notifications are injected
// with Notify, and TriggerDisconnect simulates the peripheral going away.
type FakeTransport struct {
	Info       session.DeviceInfo
	ConnectErr error

	mu              sync.Mutex
	connected       bool
	disconnected    chan struct{}
	scripts         map[charKey][]ReadStep
	readTimes       map[charKey][]time.Time
	gates           map[charKey]chan struct{}
	holds           map[charKey]*ReadHold
	writes          []WriteRecord
	writeErrs       map[charKey]error
	subs            map[charKey]func([]byte)
	subscribeErrs   map[charKey]error
	cancelled       map[charKey]int
	connectCount    int
	disconnectCount int
}

var _ session.Transport = (*FakeTransport)(nil)

func NewFakeTransport(name string) *FakeTransport {
	closed := make(chan struct{})
	close(closed)
	return &FakeTransport{
		Info:          session.DeviceInfo{Name: name, Address: "AA:BB:CC:DD:EE:FF"},
		disconnected:  closed,
		scripts:       make(map[charKey][]ReadStep),
		readTimes:     make(map[charKey][]time.Time),
		gates:         make(map[charKey]chan struct{}),
		holds:         make(map[charKey]*ReadHold),
		writeErrs:     make(map[charKey]error),
		subs:          make(map[charKey]func([]byte)),
		subscribeErrs: make(map[charKey]error),
		cancelled:     make(map[charKey]int),
	}
}

// ScriptRead sets the read results of a characteristic.
func (f *FakeTransport) ScriptRead(svc codec.ServiceID, chr codec.CharacteristicID, steps ...ReadStep) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[charKey{svc, chr}] = steps
	return f
}

// FailWrite makes writes to a characteristic fail with err.
func (f *FakeTransport) FailWrite(svc codec.ServiceID, chr codec.CharacteristicID, err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErrs[charKey{svc, chr}] = err
	return f
}

// FailSubscribe makes subscriptions to a characteristic fail with err.
func (f *FakeTransport) FailSubscribe(svc codec.ServiceID, chr codec.CharacteristicID, err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErrs[charKey{svc, chr}] = err
	return f
}

// BlockReads holds reads of a characteristic until the returned release func is
// called or the read context ends.
func (f *FakeTransport) BlockReads(svc codec.ServiceID, chr codec.CharacteristicID) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[charKey{svc, chr}] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, charKey{svc, chr})
			f.mu.Unlock()
			close(gate)
		})
	}
}

// ReadHold parks reads of one characteristic until Complete. A parked read
// ignores its context and the link state: once completed it returns its
// scripted result, like a reply already on the air when the link dropped.
type ReadHold struct {
	f        *FakeTransport
	key      charKey
	entered  chan struct{}
	release  chan struct{}
	enterOne sync.Once
	doneOnce sync.Once
}

// HoldReads parks every read of a characteristic until the hold is completed.
func (f *FakeTransport) HoldReads(svc codec.ServiceID, chr codec.CharacteristicID) *ReadHold {
	h := &ReadHold{
		f:       f,
		key:     charKey{svc, chr},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	f.mu.Lock()
	f.holds[h.key] = h
	f.mu.Unlock()
	return h
}

// WaitEntered reports whether a read parked on the hold within timeout.
func (h *ReadHold) WaitEntered(timeout time.Duration) bool {
	select {
	case <-h.entered:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Complete lets parked reads return and stops holding new ones.
func (h *ReadHold) Complete() {
	h.doneOnce.Do(func() {
		h.f.mu.Lock()
		if h.f.holds[h.key] == h {
			delete(h.f.holds, h.key)
		}
		h.f.mu.Unlock()
		close(h.release)
	})
}

func (f *FakeTransport) Connect(ctx context.Context) (session.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return session.DeviceInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCount++
	if f.ConnectErr != nil {
		return session.DeviceInfo{}, f.ConnectErr
	}
	f.connected = true
	f.disconnected = make(chan struct{})
	return f.Info, nil
}

func (f *FakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCount++
	f.dropLocked()
	return nil
}

// TriggerDisconnect simulates a remote disconnect.
func (f *FakeTransport) TriggerDisconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropLocked()
}

func (f *FakeTransport) dropLocked() {
	if !f.connected {
		return
	}
	f.connected = false
	f.subs = make(map[charKey]func([]byte))
	close(f.disconnected)
}

func (f *FakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeTransport) Disconnected() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

func (f *FakeTransport) Read(ctx context.Context, svc codec.ServiceID, chr codec.CharacteristicID) ([]byte, error) {
	key := charKey{svc, chr}

	f.mu.Lock()
	gate := f.gates[key]
	hold := f.holds[key]
	f.mu.Unlock()
	if hold != nil {
		hold.enterOne.Do(func() { close(hold.entered) })
		<-hold.release
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.nextStepLocked(key, svc, chr)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, device.ErrNotConnected
	}
	return f.nextStepLocked(key, svc, chr)
}

func (f *FakeTransport) nextStepLocked(key charKey, svc codec.ServiceID, chr codec.CharacteristicID) ([]byte, error) {
	steps, ok := f.scripts[key]
	if !ok || len(steps) == 0 {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{svc.UUID(), chr.UUID()}}
	}
	n := len(f.readTimes[key])
	f.readTimes[key] = append(f.readTimes[key], time.Now())
	step := steps[min(n, len(steps)-1)]
	return append([]byte(nil), step.Data...), step.Err
}

func (f *FakeTransport) Write(ctx context.Context, svc codec.ServiceID, chr codec.CharacteristicID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return device.ErrNotConnected
	}
	f.writes = append(f.writes, WriteRecord{Service: svc, Char: chr, Data: append([]byte(nil), data...), Time: time.Now()})
	return f.writeErrs[charKey{svc, chr}]
}

func (f *FakeTransport) Subscribe(svc codec.ServiceID, chr codec.CharacteristicID, fn func([]byte)) (session.Subscription, error) {
	key := charKey{svc, chr}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, device.ErrNotConnected
	}
	if err := f.subscribeErrs[key]; err != nil {
		return nil, err
	}
	f.subs[key] = fn
	return &fakeSubscription{f: f, key: key}, nil
}

type fakeSubscription struct {
	f   *FakeTransport
	key charKey
}

func (s *fakeSubscription) Cancel() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	delete(s.f.subs, s.key)
	s.f.cancelled[s.key]++
	return nil
}

// Notify delivers a notification if the characteristic is subscribed and reports
// whether it was delivered. The handler runs on the calling goroutine.
func (f *FakeTransport) Notify(svc codec.ServiceID, chr codec.CharacteristicID, data ...byte) bool {
	f.mu.Lock()
	fn := f.subs[charKey{svc, chr}]
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(data)
	return true
}

func (f *FakeTransport) Subscribed(svc codec.ServiceID, chr codec.CharacteristicID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[charKey{svc, chr}]
	return ok
}

func (f *FakeTransport) ActiveSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *FakeTransport) CancelCount(svc codec.ServiceID, chr codec.CharacteristicID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[charKey{svc, chr}]
}

func (f *FakeTransport) ReadCount(svc codec.ServiceID, chr codec.CharacteristicID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readTimes[charKey{svc, chr}])
}

func (f *FakeTransport) ReadTimes(svc codec.ServiceID, chr codec.CharacteristicID) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.readTimes[charKey{svc, chr}]...)
}

func (f *FakeTransport) Writes() []WriteRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WriteRecord(nil), f.writes...)
}

// WritesTo returns the payloads written to one characteristic, in order.
func (f *FakeTransport) WritesTo(svc codec.ServiceID, chr codec.CharacteristicID) [][]byte {
	var out [][]byte
	for _, w := range f.Writes() {
		if w.Service == svc && w.Char == chr {
			out = append(out, w.Data)
		}
	}
	return out
}

func (f *FakeTransport) ConnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCount
}

func (f *FakeTransport) DisconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnectCount
}

func (f *FakeTransport) String() string {
	return fmt.Sprintf("FakeTransport(%s)", f.Info.Name)
}
