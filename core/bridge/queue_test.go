package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueue_StartsWithSentinel(t *testing.T) {
	q := NewCommandQueue()
	cmd, ok := q.WaitNext(context.Background(), time.Millisecond)
	require.True(t, ok, "the wake sentinel must be available immediately")
	assert.Nil(t, cmd)
}

func TestCommandQueue_FIFO(t *testing.T) {
	q := NewCommandQueue()
	// Consume the startup sentinel first.
	_, ok := q.WaitNext(context.Background(), time.Millisecond)
	require.True(t, ok)

	q.Enqueue(SetChargeLimit{Percent: 70})
	q.Enqueue(StartCharge{})
	q.Enqueue(StopCharge{})

	want := []Command{SetChargeLimit{Percent: 70}, StartCharge{}, StopCharge{}}
	for _, w := range want {
		cmd, ok := q.WaitNext(context.Background(), time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, w, cmd)
	}
}

func TestCommandQueue_WaitNextTimesOut(t *testing.T) {
	q := NewCommandQueue()
	_, ok := q.WaitNext(context.Background(), time.Millisecond)
	require.True(t, ok)

	start := time.Now()
	cmd, ok := q.WaitNext(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)
	assert.False(t, ok)
	assert.Nil(t, cmd)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestCommandQueue_WaitNextUnblocksOnEnqueue(t *testing.T) {
	q := NewCommandQueue()
	_, ok := q.WaitNext(context.Background(), time.Millisecond)
	require.True(t, ok)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(StartCharge{})
	}()
	cmd, ok := q.WaitNext(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, StartCharge{}, cmd)
}

func TestCommandQueue_WaitNextCancelled(t *testing.T) {
	q := NewCommandQueue()
	_, ok := q.WaitNext(context.Background(), time.Millisecond)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, ok = q.WaitNext(ctx, time.Minute)
	assert.False(t, ok)
}

func TestCommandQueue_DrainLeavesSentinel(t *testing.T) {
	q := NewCommandQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(SetChargeLimit{Percent: 50 + i})
	}

	discarded := q.Drain()
	assert.Equal(t, 6, discarded, "five commands plus the startup sentinel")
	assert.Equal(t, 1, q.Len())

	cmd, ok := q.WaitNext(context.Background(), time.Millisecond)
	require.True(t, ok)
	assert.Nil(t, cmd, "only the sentinel survives a drain")

	_, ok = q.WaitNext(context.Background(), time.Millisecond)
	assert.False(t, ok)
}

func TestCommandQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewCommandQueue()
	_, ok := q.WaitNext(context.Background(), time.Millisecond)
	require.True(t, ok)

	const n = 50
	done := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			q.Enqueue(SetChargeLimit{Percent: i})
		}
		close(done)
	}()

	got := 0
	for got < n {
		_, ok := q.WaitNext(context.Background(), time.Second)
		require.True(t, ok)
		got++
	}
	<-done
	assert.Equal(t, 0, q.Len())
}
