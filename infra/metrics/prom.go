package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/sillyfrog/tesla-mqtt/core/metrics"
)

// PromSink records bridge events in Prometheus metrics.
type PromSink struct {
	cycles   *prometheus.CounterVec
	commands *prometheus.CounterVec
	restarts prometheus.Counter
	cadence  prometheus.Gauge
	battery  prometheus.Gauge
}

// NewPromSink registers bridge metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using the configured
// port.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_poll_cycles_total",
		Help: "Total number of completed poll cycles",
	}, []string{"online", "active"})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_commands_total",
		Help: "Total number of commands forwarded to the vehicle API",
	}, []string{"command", "already_set"})
	restarts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_session_restarts_total",
		Help: "Total number of vehicle session restarts",
	})
	cadence := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_poll_cadence_seconds",
		Help: "Current inter-poll sleep duration",
	})
	battery := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_battery_level_percent",
		Help: "Battery level from the last online poll",
	})

	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(commands); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			commands = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(restarts); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			restarts = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(cadence); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cadence = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(battery); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			battery = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{cycles: cycles, commands: commands, restarts: restarts, cadence: cadence, battery: battery}, nil
}

// RecordCycle increments the cycle counter and updates the gauges.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(strconv.FormatBool(ev.Online), strconv.FormatBool(ev.Active)).Inc()
	s.cadence.Set(ev.Cadence.Seconds())
	if ev.Online {
		s.battery.Set(float64(ev.BatteryLevel))
	}
	return nil
}

// RecordCommand increments the command counter.
func (s *PromSink) RecordCommand(ev coremetrics.CommandEvent) error {
	s.commands.WithLabelValues(ev.Command, strconv.FormatBool(ev.AlreadySet)).Inc()
	return nil
}

// RecordRestart increments the restart counter.
func (s *PromSink) RecordRestart(coremetrics.RestartEvent) error {
	s.restarts.Inc()
	return nil
}
