package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSink struct {
	cycles   int
	commands int
	restarts int
	err      error
}

func (c *countingSink) RecordCycle(CycleEvent) error     { c.cycles++; return c.err }
func (c *countingSink) RecordCommand(CommandEvent) error { c.commands++; return c.err }
func (c *countingSink) RecordRestart(RestartEvent) error { c.restarts++; return c.err }

func TestMultiSink_FansOut(t *testing.T) {
	a := &countingSink{}
	b := &countingSink{}
	m := NewMultiSink(a, b)

	assert.NoError(t, m.RecordCycle(CycleEvent{Time: time.Now()}))
	assert.NoError(t, m.RecordCommand(CommandEvent{}))
	assert.NoError(t, m.RecordRestart(RestartEvent{}))

	for _, s := range []*countingSink{a, b} {
		assert.Equal(t, 1, s.cycles)
		assert.Equal(t, 1, s.commands)
		assert.Equal(t, 1, s.restarts)
	}
}

func TestMultiSink_CollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &countingSink{err: boom}
	b := &countingSink{}
	m := NewMultiSink(a, b)

	err := m.RecordCycle(CycleEvent{})
	assert.ErrorIs(t, err, boom)
	// The healthy sink still records.
	assert.Equal(t, 1, b.cycles)
}
