package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/sillyfrog/tesla-mqtt/core/geo"
)

// Config defines the bridge behavior: topics, polling cadence and restart
// backoff.
type Config struct {
	// BaseTopic is the MQTT topic prefix for state and command messages,
	// without trailing slash.
	BaseTopic string `json:"base_topic"`
	// DiscoveryPrefix is the Home Assistant discovery namespace.
	DiscoveryPrefix string `json:"discovery_prefix"`
	// GPSHome is the "lat,lng" of home. When empty the vehicle is always
	// considered home.
	GPSHome string `json:"gps_home"`
	// VIN selects the vehicle on the account. Only required when the
	// account has more than one vehicle.
	VIN string `json:"vin"`

	// ActiveIntervalSeconds is the poll interval while the vehicle is
	// active (driving, charging, or commands pending).
	ActiveIntervalSeconds int `json:"active_interval_seconds"`
	// IdleIntervalSeconds caps the poll interval for an idle vehicle.
	IdleIntervalSeconds int `json:"idle_interval_seconds"`
	// IdleGrowthFactor multiplies the cadence after each idle cycle.
	IdleGrowthFactor float64 `json:"idle_growth_factor"`
	// ParkedMultiplier stretches the active interval while parked, e.g.
	// charging in the driveway.
	ParkedMultiplier int `json:"parked_multiplier"`

	// BackoffFactor multiplies the restart delay after each consecutive
	// session failure.
	BackoffFactor float64 `json:"backoff_factor"`
	// BackoffMaxSeconds caps the restart delay.
	BackoffMaxSeconds int `json:"backoff_max_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseTopic == "" {
		c.BaseTopic = "tesla/car"
	}
	if c.DiscoveryPrefix == "" {
		c.DiscoveryPrefix = "homeassistant"
	}
	if c.ActiveIntervalSeconds == 0 {
		c.ActiveIntervalSeconds = 15
	}
	if c.IdleIntervalSeconds == 0 {
		c.IdleIntervalSeconds = 11 * 60
	}
	if c.IdleGrowthFactor == 0 {
		c.IdleGrowthFactor = 1.2
	}
	if c.ParkedMultiplier == 0 {
		c.ParkedMultiplier = 4
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 1.5
	}
	if c.BackoffMaxSeconds == 0 {
		c.BackoffMaxSeconds = 3600
	}
}

// Validate checks mandatory fields and coordinate syntax.
func (c Config) Validate() error {
	if strings.HasSuffix(c.BaseTopic, "/") {
		return fmt.Errorf("base_topic must not end with /")
	}
	if c.ActiveIntervalSeconds > c.IdleIntervalSeconds {
		return fmt.Errorf("active interval %ds exceeds idle interval %ds",
			c.ActiveIntervalSeconds, c.IdleIntervalSeconds)
	}
	if c.IdleGrowthFactor < 1 {
		return fmt.Errorf("idle_growth_factor must be >= 1")
	}
	if c.BackoffFactor < 1 {
		return fmt.Errorf("backoff_factor must be >= 1")
	}
	if _, err := c.HomePoint(); err != nil {
		return err
	}
	return nil
}

// HomePoint parses GPSHome into a coordinate. A nil point means no geofence
// is configured.
func (c Config) HomePoint() (*geo.Point, error) {
	if c.GPSHome == "" {
		return nil, nil
	}
	parts := strings.Split(c.GPSHome, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("gps_home %q: want \"lat,lng\"", c.GPSHome)
	}
	return &geo.Point{
		Lat: forceFloat(strings.TrimSpace(parts[0])),
		Lng: forceFloat(strings.TrimSpace(parts[1])),
	}, nil
}

// ActiveInterval returns the base cadence for active cycles.
func (c Config) ActiveInterval() time.Duration {
	return time.Duration(c.ActiveIntervalSeconds) * time.Second
}

// IdleInterval returns the maximum cadence.
func (c Config) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalSeconds) * time.Second
}

// BackoffMax returns the restart delay cap.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSeconds) * time.Second
}
