package metrics

import "time"

// CycleEvent records the outcome of one poll cycle.
type CycleEvent struct {
	VIN           string
	Online        bool
	Active        bool
	ChargingState string
	BatteryLevel  int
	Cadence       time.Duration
	Time          time.Time
}

// CommandEvent records a command forwarded to the vehicle API.
type CommandEvent struct {
	VIN        string
	Command    string
	AlreadySet bool
	Time       time.Time
}

// RestartEvent records a session failure handled by the supervisor.
type RestartEvent struct {
	VIN     string
	Reason  string
	Backoff time.Duration
	Time    time.Time
}

// Sink records bridge events for observability purposes.
type Sink interface {
	RecordCycle(ev CycleEvent) error
	RecordCommand(ev CommandEvent) error
	RecordRestart(ev RestartEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error     { return nil }
func (NopSink) RecordCommand(CommandEvent) error { return nil }
func (NopSink) RecordRestart(RestartEvent) error { return nil }
