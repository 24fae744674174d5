package bridge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sillyfrog/tesla-mqtt/core/tesla"
)

// Command is a pending vehicle instruction created from an inbound MQTT
// message and consumed exactly once by the polling engine.
type Command interface {
	// Apply translates the command into the vehicle API call.
	Apply(ctx context.Context, v tesla.Vehicle) error
	String() string
}

// SetChargeLimit sets the charge limit state of charge.
type SetChargeLimit struct {
	Percent int
}

func (c SetChargeLimit) Apply(ctx context.Context, v tesla.Vehicle) error {
	return v.SetChargeLimit(ctx, c.Percent)
}

func (c SetChargeLimit) String() string {
	return fmt.Sprintf("set_charge_limit(%d)", c.Percent)
}

// StartCharge starts charging.
type StartCharge struct{}

func (StartCharge) Apply(ctx context.Context, v tesla.Vehicle) error {
	return v.StartCharging(ctx)
}

func (StartCharge) String() string { return "start_charge" }

// StopCharge stops charging.
type StopCharge struct{}

func (StopCharge) Apply(ctx context.Context, v tesla.Vehicle) error {
	return v.StopCharging(ctx)
}

func (StopCharge) String() string { return "stop_charge" }

// ParseCommand maps an inbound setting name and payload to a Command.
// Settings are the second-to-last topic segment under {basetopic}/+/set.
func ParseCommand(setting, payload string) (Command, error) {
	switch setting {
	case "charge_limit":
		return SetChargeLimit{Percent: forceInt(payload)}, nil
	case "charging":
		switch payload {
		case "true":
			return StartCharge{}, nil
		case "false":
			return StopCharge{}, nil
		}
		return nil, fmt.Errorf("charging payload %q: want true or false", payload)
	}
	return nil, fmt.Errorf("unknown setting: %s", setting)
}

// forceFloat parses leniently, yielding 0 for anything unparsable.
func forceFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func forceInt(s string) int {
	return int(forceFloat(s))
}
