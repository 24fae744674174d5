package metrics

import (
	"context"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/sillyfrog/tesla-mqtt/core/metrics"
	"github.com/sillyfrog/tesla-mqtt/infra/logger"
)

// InfluxSink writes bridge events to an InfluxDB instance using the
// official client, giving the telemetry a queryable history.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordCycle writes the poll cycle outcome as a point.
func (s *InfluxSink) RecordCycle(ev coremetrics.CycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("poll_cycle").
		AddTag("vin", ev.VIN).
		AddTag("online", strconv.FormatBool(ev.Online)).
		AddTag("active", strconv.FormatBool(ev.Active)).
		AddField("cadence_seconds", ev.Cadence.Seconds()).
		SetTime(ev.Time)
	if ev.Online {
		p.AddTag("charging_state", ev.ChargingState).
			AddField("battery_level", ev.BatteryLevel)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCommand writes the forwarded command as a point.
func (s *InfluxSink) RecordCommand(ev coremetrics.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("vehicle_command").
		AddTag("vin", ev.VIN).
		AddTag("command", ev.Command).
		AddField("already_set", ev.AlreadySet).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRestart writes the session restart as a point.
func (s *InfluxSink) RecordRestart(ev coremetrics.RestartEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("session_restart").
		AddTag("vin", ev.VIN).
		AddField("reason", ev.Reason).
		AddField("backoff_seconds", ev.Backoff.Seconds()).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
