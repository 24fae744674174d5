package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sillyfrog/tesla-mqtt/core/geo"
	"github.com/sillyfrog/tesla-mqtt/core/tesla"
	"github.com/sillyfrog/tesla-mqtt/infra/logger"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(15*time.Second, 1.5, 60*time.Second)

	assert.Equal(t, 15*time.Second, b.Next())
	assert.Equal(t, 22500*time.Millisecond, b.Next())
	assert.Equal(t, 33750*time.Millisecond, b.Next())
	assert.Equal(t, 50625*time.Millisecond, b.Next())
	// Capped from here on.
	assert.Equal(t, 60*time.Second, b.Next())
	assert.Equal(t, 60*time.Second, b.Next())
}

func TestBackoff_ResetOnSuccess(t *testing.T) {
	b := NewBackoff(15*time.Second, 1.5, time.Hour)
	b.Next()
	b.Next()
	require.Greater(t, b.Current(), 15*time.Second)

	b.Reset()
	assert.Equal(t, 15*time.Second, b.Next())
}

// fakeConnector fails a configurable number of connects, then yields
// sessions over the given vehicle.
type fakeConnector struct {
	mu         sync.Mutex
	vehicle    tesla.Vehicle
	failures   int
	connects   int
	closeCalls int
}

func (c *fakeConnector) Connect(context.Context) (tesla.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.failures > 0 {
		c.failures--
		return nil, errors.New("login failed")
	}
	return &fakeSession{conn: c}, nil
}

func (c *fakeConnector) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

type fakeSession struct {
	conn *fakeConnector
}

func (s *fakeSession) Vehicle(context.Context, string) (tesla.Vehicle, error) {
	return s.conn.vehicle, nil
}

func (s *fakeSession) Close() error {
	s.conn.mu.Lock()
	s.conn.closeCalls++
	s.conn.mu.Unlock()
	return nil
}

// sleepRecorder replaces the supervisor's backoff sleep and records the
// requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delays)
}

func (r *sleepRecorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestSupervisor(cfg Config, conn tesla.Connector) (*Supervisor, *CommandQueue, *fakePublisher, *sleepRecorder) {
	q := NewCommandQueue()
	pub := &fakePublisher{}
	cp := NewChangePublisher(pub, cfg.BaseTopic, logger.NopLogger{})
	engine := NewEngine(cfg, q, cp, geo.Classifier{}, nil, logger.NopLogger{})
	disc := NewDiscovery(pub, cfg.BaseTopic, cfg.DiscoveryPrefix, logger.NopLogger{})
	s := NewSupervisor(cfg, conn, q, engine, disc, nil, logger.NopLogger{})

	rec := &sleepRecorder{}
	s.sleep = rec.sleep
	return s, q, pub, rec
}

func TestSupervisor_BackoffGrowsAcrossFailures(t *testing.T) {
	cfg := testConfig()
	conn := &fakeConnector{failures: 3, vehicle: newFakeVehicle()}
	s, _, _, rec := newTestSupervisor(cfg, conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done

	got := rec.all()
	assert.Equal(t, 15*time.Second, got[0])
	assert.Equal(t, 22500*time.Millisecond, got[1])
	assert.Equal(t, 33750*time.Millisecond, got[2])
}

func TestSupervisor_SuccessResetsBackoff(t *testing.T) {
	cfg := testConfig()
	v := newFakeVehicle()
	v.setDataErr(errors.New("flaky"))
	conn := &fakeConnector{vehicle: v}
	s, q, _, rec := newTestSupervisor(cfg, conn)

	// Grow the backoff as if failures already happened.
	s.backoff.Next()
	s.backoff.Next()
	require.Greater(t, s.backoff.Current(), 15*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
	v.setDataErr(nil)

	// Wait for a healthy cycle, then break the session again.
	require.Eventually(t, func() bool { return v.dataCallCount() >= 2 }, time.Second, time.Millisecond)
	before := rec.count()
	v.setSummaryErr(errors.New("session expired"))
	q.Enqueue(nil)

	require.Eventually(t, func() bool { return rec.count() > before }, time.Second, time.Millisecond)
	cancel()
	<-done

	got := rec.all()
	// The delay after the post-success failure is back at base.
	assert.Equal(t, 15*time.Second, got[len(got)-1])
}

func TestSupervisor_DrainsQueueOnFailure(t *testing.T) {
	cfg := testConfig()
	conn := &fakeConnector{failures: 1, vehicle: newFakeVehicle()}
	s, q, _, rec := newTestSupervisor(cfg, conn)

	q.Enqueue(SetChargeLimit{Percent: 90})
	q.Enqueue(StartCharge{})
	require.Equal(t, 3, q.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	// Only the wake sentinel survives the drain.
	assert.LessOrEqual(t, q.Len(), 1)
}

func TestSupervisor_AnnouncesDiscoveryEachSession(t *testing.T) {
	cfg := testConfig()
	v := newFakeVehicle()
	v.setSummaryErr(errors.New("always failing"))
	conn := &fakeConnector{vehicle: v}
	s, _, pub, rec := newTestSupervisor(cfg, conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done

	configs := 0
	for _, m := range pub.messages {
		if strings.HasSuffix(m.Topic, "/config") {
			configs++
		}
	}
	assert.GreaterOrEqual(t, configs, 10, "five descriptors per established session")
	assert.GreaterOrEqual(t, conn.closeCount(), 2, "sessions are closed on failure")
}
