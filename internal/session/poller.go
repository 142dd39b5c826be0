package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/codec"
	"golang.org/x/time/rate"
)

// Interpreter turns one notification payload into zero or more named readings.
type Interpreter func([]byte) ([]Reading, error)

// Scheduler registers notification streams and periodic reads against its
// session. Everything it starts is released by session teardown.
type Scheduler struct {
	s *Session

	dropped      atomic.Int64
	decodeErrors atomic.Int64
}

// SchedulerStats are counters since the session started.
type SchedulerStats struct {
	Dropped      int64 `json:"dropped"`
	DecodeErrors int64 `json:"decode_errors"`
}

func newScheduler(s *Session) *Scheduler {
	return &Scheduler{s: s}
}

func (sc *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Dropped:      sc.dropped.Load(),
		DecodeErrors: sc.decodeErrors.Load(),
	}
}

// authorized returns an *InvalidStateError unless the session is Authorized and
// its link is up.
func (sc *Scheduler) authorized(op string) error {
	sc.s.mu.RLock()
	defer sc.s.mu.RUnlock()
	if sc.s.state != StateAuthorized || sc.s.stoppedLocked() {
		return &InvalidStateError{Op: op, State: sc.s.state}
	}
	return nil
}

// start registers the standard telemetry set of an authorized session.
func (sc *Scheduler) start() error {
	if err := sc.SubscribeValue(codec.ServiceBattery, codec.CharBatteryLevel, "batteryLevel", codec.DecodeSignedInt8); err != nil {
		return err
	}
	if err := sc.SubscribeValue(codec.ServiceControl, codec.CharDepth, "depth", codec.DecodeSignedInt16BE); err != nil {
		return err
	}
	if err := sc.SubscribeValue(codec.ServiceControl, codec.CharHall, "hall", codec.DecodeSignedInt16BE); err != nil {
		return err
	}
	if err := sc.SubscribePosition(); err != nil {
		return err
	}
	sc.startMotorPoll()
	return nil
}

func streamKey(svc codec.ServiceID, chr codec.CharacteristicID) string {
	return svc.UUID() + "/" + chr.UUID()
}

// SubscribeValue emits a characteristicIntUpdate named name for every notification.
// Like every registration it requires an Authorized session.
func (sc *Scheduler) SubscribeValue(svc codec.ServiceID, chr codec.CharacteristicID, name string, decode codec.Decoder) error {
	return sc.SubscribeDecoded(svc, chr, func(data []byte) ([]Reading, error) {
		v, err := decode(data)
		if err != nil {
			return nil, err
		}
		return []Reading{{Name: name, Value: v}}, nil
	})
}

// SubscribeDecoded emits one characteristicIntUpdate per reading returned by interpret.
func (sc *Scheduler) SubscribeDecoded(svc codec.ServiceID, chr codec.CharacteristicID, interpret Interpreter) error {
	return sc.subscribe(svc, chr, func(data []byte) error {
		readings, err := interpret(data)
		if err != nil {
			return err
		}
		for _, r := range readings {
			if !sc.s.emit(Event{Kind: EventCharacteristicUpdate, Name: r.Name, Value: r.Value}) {
				return nil
			}
		}
		return nil
	})
}

// SubscribePosition emits updatePosition for every accelerometer notification.
func (sc *Scheduler) SubscribePosition() error {
	return sc.subscribe(codec.ServiceControl, codec.CharPosition, func(data []byte) error {
		pos, err := codec.DecodePositionSample(data)
		if err != nil {
			return err
		}
		sc.s.emit(Event{Kind: EventPositionUpdate, Position: pos})
		return nil
	})
}

func (sc *Scheduler) subscribe(svc codec.ServiceID, chr codec.CharacteristicID, handle func([]byte) error) error {
	key := streamKey(svc, chr)
	if err := sc.authorized("subscribe " + key); err != nil {
		return err
	}
	logger := sc.s.logger.WithFields(logrus.Fields{"service": svc, "char": chr})

	var limiter *rate.Limiter
	if sc.s.opts.TelemetryMinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(sc.s.opts.TelemetryMinInterval), 1)
	}

	sub, err := sc.s.transport.Subscribe(svc, chr, func(data []byte) {
		if sc.s.Closed() {
			return
		}
		if limiter != nil && !limiter.Allow() {
			sc.dropped.Add(1)
			return
		}
		if err := handle(data); err != nil {
			sc.decodeErrors.Add(1)
			logger.WithFields(logrus.Fields{"bytes": data, "error": err}).Warn("Dropping undecodable notification")
		}
	})
	if err != nil {
		return &TransportError{Op: fmt.Sprintf("subscribe %s", key), Err: err}
	}
	sc.s.addSubscription(key, sub)
	logger.Debug("Subscribed")
	return nil
}

// startMotorPoll reads the motor control characteristic every MotorPollInterval
// and emits updateMotorSpeed. Ticks are skipped while the link is down.
func (sc *Scheduler) startMotorPoll() {
	interval := sc.s.opts.MotorPollInterval
	sc.s.group.Go(sc.s.ctx, "motor-speed-poller", func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if !sc.s.transport.IsConnected() {
				continue
			}

			data, err := sc.s.transport.Read(ctx, codec.ServiceControl, codec.CharMotorControl)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sc.s.logger.WithField("error", err).Warn("Motor speed read failed")
				continue
			}
			speed, err := codec.DecodeMotorSpeedReply(data)
			if err != nil {
				sc.decodeErrors.Add(1)
				sc.s.logger.WithFields(logrus.Fields{"bytes": data, "error": err}).Warn("Dropping undecodable motor speed reply")
				continue
			}
			if sc.s.emit(Event{Kind: EventMotorSpeedUpdate, Motor: speed}) {
				sc.s.lastMotor.Store(&speed)
			}
		}
	})
}

// PollCharacteristic reads a characteristic right away and then every interval,
// emitting characteristicIntUpdate named name. The next read is scheduled only
// after the previous one was decoded and emitted, so reads never overlap. The
// chain stops when the link is down or the session closes.
func (sc *Scheduler) PollCharacteristic(svc codec.ServiceID, chr codec.CharacteristicID, interval time.Duration, name string, decode codec.Decoder) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	op := "poll " + name
	if err := sc.authorized(op); err != nil {
		return err
	}

	logger := sc.s.logger.WithFields(logrus.Fields{"service": svc, "char": chr, "name": name})
	started := sc.s.group.Go(sc.s.ctx, "poll-"+name, func(ctx context.Context) {
		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			if !sc.s.transport.IsConnected() {
				logger.Debug("Link down, polling stopped")
				return
			}

			data, err := sc.s.transport.Read(ctx, svc, chr)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				logger.WithField("error", err).Warn("Periodic read failed")
			default:
				if v, err := decode(data); err != nil {
					sc.decodeErrors.Add(1)
					logger.WithFields(logrus.Fields{"bytes": data, "error": err}).Warn("Dropping undecodable value")
				} else if !sc.s.emit(Event{Kind: EventCharacteristicUpdate, Name: name, Value: v}) {
					return
				}
			}

			if ctx.Err() != nil {
				return
			}
			timer.Reset(interval)
		}
	})
	if !started {
		return &InvalidStateError{Op: op, State: sc.s.State()}
	}
	return nil
}
