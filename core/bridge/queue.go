package bridge

import (
	"context"
	"sync"
	"time"
)

// CommandQueue is an unbounded FIFO of pending vehicle commands. The MQTT
// callback goroutine appends, the polling goroutine drains. A nil entry is
// the wake sentinel: it makes WaitNext return without a command, which
// forces an immediate poll cycle.
type CommandQueue struct {
	mu     sync.Mutex
	items  []Command
	notify chan struct{}
}

// NewCommandQueue creates a queue holding the wake sentinel so the first
// poll happens immediately.
func NewCommandQueue() *CommandQueue {
	q := &CommandQueue{notify: make(chan struct{}, 1)}
	q.items = append(q.items, nil)
	return q
}

// Enqueue appends a command. It never blocks and never fails. A nil command
// acts as a wake marker.
func (q *CommandQueue) Enqueue(cmd Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// WaitNext blocks until an item is available, the timeout expires, or the
// context is done. The second return value is false on timeout or
// cancellation. A nil command with true means the wake sentinel was
// consumed.
func (q *CommandQueue) WaitNext(ctx context.Context, timeout time.Duration) (Command, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if cmd, ok := q.pop(); ok {
			return cmd, true
		}
		select {
		case <-q.notify:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Drain discards everything queued and re-arms the wake sentinel. The
// supervisor calls it after a session failure so stale commands never fire
// against a fresh session. Returns the number of discarded items.
func (q *CommandQueue) Drain() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = q.items[:0]
	q.items = append(q.items, nil)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return n
}

// Len reports the number of queued items, sentinel included.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *CommandQueue) pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, true
}
