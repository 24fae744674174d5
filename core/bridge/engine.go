package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sillyfrog/tesla-mqtt/core/geo"
	"github.com/sillyfrog/tesla-mqtt/core/logger"
	"github.com/sillyfrog/tesla-mqtt/core/metrics"
	"github.com/sillyfrog/tesla-mqtt/core/tesla"
)

// gpsRecord is the composite payload published under the gps key.
type gpsRecord struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Heading     float64 `json:"heading"`
	Speed       float64 `json:"speed"`
	State       string  `json:"state"`
	GPSAccuracy int     `json:"gps_accuracy"`
}

// Engine runs the per-cycle poll loop: drain at most one command, fetch
// vehicle state, publish changes, adapt the cadence to vehicle activity.
type Engine struct {
	cfg     Config
	queue   *CommandQueue
	pub     *ChangePublisher
	geo     geo.Classifier
	sink    metrics.Sink
	log     logger.Logger
	onCycle func()
	cadence time.Duration
}

// NewEngine creates an Engine. sink may be nil.
func NewEngine(cfg Config, queue *CommandQueue, pub *ChangePublisher, classifier geo.Classifier, sink metrics.Sink, log logger.Logger) *Engine {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{
		cfg:     cfg,
		queue:   queue,
		pub:     pub,
		geo:     classifier,
		sink:    sink,
		log:     log,
		cadence: cfg.IdleInterval(),
	}
}

// SetCycleHook registers a function invoked after every successful cycle.
// The supervisor uses it to reset the failure backoff.
func (e *Engine) SetCycleHook(fn func()) { e.onCycle = fn }

// Cadence returns the current inter-poll sleep duration.
func (e *Engine) Cadence() time.Duration { return e.cadence }

// Run polls the vehicle until an error occurs or the context is cancelled.
// Any returned error is fatal to the session; the caller restarts.
func (e *Engine) Run(ctx context.Context, v tesla.Vehicle) error {
	e.cadence = e.cfg.IdleInterval()
	for {
		if err := e.cycle(ctx, v); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (e *Engine) cycle(ctx context.Context, v tesla.Vehicle) error {
	if e.cadence > e.cfg.IdleInterval() {
		e.cadence = e.cfg.IdleInterval()
	}
	e.log.Debugf("waiting up to %s for commands", e.cadence)
	cmd, ok := e.queue.WaitNext(ctx, e.cadence)
	if err := ctx.Err(); err != nil {
		return err
	}
	// Anything arriving on the queue, wake sentinel included, makes the
	// cycle active.
	active := ok

	if cmd != nil {
		if err := e.sendCommand(ctx, v, cmd); err != nil {
			return err
		}
	}

	summary, err := v.Summary(ctx)
	if err != nil {
		return fmt.Errorf("vehicle summary: %w", err)
	}
	e.log.Debugf("vehicle state: %s", summary.State)

	parked := true
	var charge tesla.ChargeState
	if summary.Online() {
		snap, err := v.Data(ctx)
		if err != nil {
			return fmt.Errorf("vehicle data: %w", err)
		}
		charge = snap.Charge

		shift := snap.Drive.ShiftState
		if shift == "" {
			// No shift state means the car is parked.
			shift = "P"
		}
		if shift != "P" {
			active = true
		}
		if snap.Charge.ChargingState == "Charging" {
			active = true
		}
		parked = shift == "P"

		if err := e.publishSnapshot(snap, shift); err != nil {
			return fmt.Errorf("publish telemetry: %w", err)
		}
	}

	e.cadence = e.nextCadence(active, parked)

	if err := e.sink.RecordCycle(metrics.CycleEvent{
		VIN:           v.Identity().VIN,
		Online:        summary.Online(),
		Active:        active,
		ChargingState: charge.ChargingState,
		BatteryLevel:  charge.BatteryLevel,
		Cadence:       e.cadence,
		Time:          time.Now(),
	}); err != nil {
		e.log.Warnf("record cycle: %v", err)
	}
	if e.onCycle != nil {
		e.onCycle()
	}
	return nil
}

// sendCommand forwards cmd to the vehicle API. A benign already-set
// response is swallowed; any other failure aborts the session.
func (e *Engine) sendCommand(ctx context.Context, v tesla.Vehicle, cmd Command) error {
	e.log.Debugf("sending vehicle command: %s", cmd)
	err := cmd.Apply(ctx, v)
	alreadySet := errors.Is(err, tesla.ErrAlreadySet)
	if rerr := e.sink.RecordCommand(metrics.CommandEvent{
		VIN:        v.Identity().VIN,
		Command:    cmd.String(),
		AlreadySet: alreadySet,
		Time:       time.Now(),
	}); rerr != nil {
		e.log.Warnf("record command: %v", rerr)
	}
	if alreadySet {
		e.log.Debugf("command %s already set, ignored", cmd)
		return nil
	}
	if err != nil {
		return fmt.Errorf("command %s: %w", cmd, err)
	}
	return nil
}

func (e *Engine) publishSnapshot(snap tesla.Snapshot, shift string) error {
	if err := e.pub.PublishIfChanged("charging", snap.Charge.ChargingState); err != nil {
		return err
	}
	if err := e.pub.PublishIfChanged("time_to_full",
		strconv.FormatFloat(snap.Charge.TimeToFullCharge, 'f', -1, 64)); err != nil {
		return err
	}
	if err := e.pub.PublishIfChanged("battery_level",
		strconv.Itoa(snap.Charge.BatteryLevel)); err != nil {
		return err
	}
	if err := e.pub.PublishIfChanged("charge_limit",
		strconv.Itoa(snap.Charge.ChargeLimitSoc)); err != nil {
		return err
	}

	point := geo.Point{Lat: snap.Drive.Latitude, Lng: snap.Drive.Longitude}
	gps, err := json.Marshal(gpsRecord{
		Latitude:    snap.Drive.Latitude,
		Longitude:   snap.Drive.Longitude,
		Heading:     snap.Drive.Heading,
		Speed:       snap.Drive.Speed,
		State:       e.geo.Classify(point),
		GPSAccuracy: 1,
	})
	if err != nil {
		return err
	}
	if err := e.pub.PublishIfChanged("gps", string(gps)); err != nil {
		return err
	}

	return e.pub.PublishIfChanged("shift_state", shift)
}

// nextCadence applies the activity rules: active resets to the base
// interval, stretched while parked; idle grows the current cadence up to
// the idle maximum.
func (e *Engine) nextCadence(active, parked bool) time.Duration {
	if active {
		next := e.cfg.ActiveInterval()
		if parked {
			next *= time.Duration(e.cfg.ParkedMultiplier)
		}
		return next
	}
	next := time.Duration(float64(e.cadence) * e.cfg.IdleGrowthFactor)
	if next > e.cfg.IdleInterval() {
		next = e.cfg.IdleInterval()
	}
	return next
}
