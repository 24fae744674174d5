package tesla

import "context"

// Summary is the lightweight presence record returned without waking the car.
type Summary struct {
	State string `json:"state"`
}

// Online reports whether the vehicle is reachable for a full data fetch.
func (s Summary) Online() bool { return s.State == "online" }

// ChargeState mirrors the charge sub-record of a vehicle data fetch.
type ChargeState struct {
	ChargingState    string  `json:"charging_state"`
	TimeToFullCharge float64 `json:"time_to_full_charge"`
	BatteryLevel     int     `json:"battery_level"`
	ChargeLimitSoc   int     `json:"charge_limit_soc"`
}

// DriveState mirrors the drive sub-record of a vehicle data fetch.
type DriveState struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Heading    float64 `json:"heading"`
	Speed      float64 `json:"speed"`
	ShiftState string  `json:"shift_state"`
}

// Snapshot is one poll cycle's view of the vehicle. It is not retained
// beyond change comparison.
type Snapshot struct {
	Charge ChargeState `json:"charge_state"`
	Drive  DriveState  `json:"drive_state"`
}

// Identity carries the stable attributes used to build discovery
// descriptors.
type Identity struct {
	VIN         string
	Name        string
	CarType     string
	TrimBadging string
}

// Vehicle is a single car reachable through an established session.
type Vehicle interface {
	Identity() Identity
	// Summary returns the presence record; it never wakes the vehicle.
	Summary(ctx context.Context) (Summary, error)
	// Data fetches the full telemetry snapshot. The vehicle must be online.
	Data(ctx context.Context) (Snapshot, error)

	SetChargeLimit(ctx context.Context, percent int) error
	StartCharging(ctx context.Context) error
	StopCharging(ctx context.Context) error
}

// Session is an authenticated connection to the vehicle cloud service.
type Session interface {
	// Vehicle selects a car by VIN (case-insensitive). An empty VIN selects
	// the first vehicle on the account.
	Vehicle(ctx context.Context, vin string) (Vehicle, error)
	Close() error
}

// Connector establishes sessions. The supervisor opens a fresh session on
// every restart.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}
