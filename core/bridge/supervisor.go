package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/sillyfrog/tesla-mqtt/core/logger"
	"github.com/sillyfrog/tesla-mqtt/core/metrics"
	"github.com/sillyfrog/tesla-mqtt/core/tesla"
)

// Backoff tracks the growing delay applied between session restarts.
type Backoff struct {
	base    time.Duration
	factor  float64
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a Backoff starting at base.
func NewBackoff(base time.Duration, factor float64, max time.Duration) *Backoff {
	return &Backoff{base: base, factor: factor, max: max, current: base}
}

// Next returns the delay to sleep now and advances the delay for the next
// failure, capped at the maximum.
func (b *Backoff) Next() time.Duration {
	d := b.current
	next := time.Duration(float64(b.current) * b.factor)
	if next > b.max {
		next = b.max
	}
	b.current = next
	return d
}

// Reset returns the delay to its base value. Called on every successful
// poll cycle.
func (b *Backoff) Reset() { b.current = b.base }

// Current exposes the pending delay.
func (b *Backoff) Current() time.Duration { return b.current }

// Supervisor keeps the bridge alive indefinitely: it establishes a vehicle
// session, announces discovery, runs the engine, and on any failure drains
// stale commands, sleeps a growing delay and starts over. There is no retry
// ceiling.
type Supervisor struct {
	connector tesla.Connector
	vin       string
	queue     *CommandQueue
	engine    *Engine
	discovery *Discovery
	backoff   *Backoff
	sink      metrics.Sink
	log       logger.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSupervisor wires the supervisor and registers the engine cycle hook
// that resets the backoff.
func NewSupervisor(cfg Config, connector tesla.Connector, queue *CommandQueue, engine *Engine, discovery *Discovery, sink metrics.Sink, log logger.Logger) *Supervisor {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	s := &Supervisor{
		connector: connector,
		vin:       cfg.VIN,
		queue:     queue,
		engine:    engine,
		discovery: discovery,
		backoff:   NewBackoff(cfg.ActiveInterval(), cfg.BackoffFactor, cfg.BackoffMax()),
		sink:      sink,
		log:       log,
		sleep:     sleepCtx,
	}
	engine.SetCycleHook(s.backoff.Reset)
	return s
}

// Run loops forever until the context is cancelled. Session failures are
// logged, backed off and retried; they never terminate the loop.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		if discarded := s.queue.Drain(); discarded > 0 {
			s.log.Infof("discarded %d stale queued items", discarded)
		}
		delay := s.backoff.Next()
		s.log.Errorf("vehicle session failed: %v", err)
		s.log.Infof("sleeping %s before restarting session", delay)
		if rerr := s.sink.RecordRestart(metrics.RestartEvent{
			VIN:     s.vin,
			Reason:  err.Error(),
			Backoff: delay,
			Time:    time.Now(),
		}); rerr != nil {
			s.log.Warnf("record restart: %v", rerr)
		}
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// session establishes a fresh vehicle session, re-announces discovery and
// runs the engine until it fails.
func (s *Supervisor) session(ctx context.Context) error {
	sess, err := s.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.log.Warnf("session close: %v", cerr)
		}
	}()

	v, err := sess.Vehicle(ctx, s.vin)
	if err != nil {
		return fmt.Errorf("select vehicle: %w", err)
	}
	ident := v.Identity()
	s.log.Infof("session established for %s (%s)", ident.Name, ident.VIN)

	if err := s.discovery.Announce(ident); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	return s.engine.Run(ctx, v)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
