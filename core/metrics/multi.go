package metrics

import "errors"

// MultiSink fans events out to several sinks, collecting all errors.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a MultiSink from the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordCycle(ev CycleEvent) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordCycle(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordCommand(ev CommandEvent) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordCommand(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordRestart(ev RestartEvent) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordRestart(ev))
	}
	return errors.Join(errs...)
}
