package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sillyfrog/tesla-mqtt/core/logger"
	"github.com/sillyfrog/tesla-mqtt/core/tesla"
)

// deviceInfo groups the bridge's entities under one Home Assistant device.
type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// entityConfig is a Home Assistant discovery descriptor.
type entityConfig struct {
	Name                string      `json:"name"`
	StateTopic          string      `json:"state_topic"`
	CommandTopic        string      `json:"command_topic,omitempty"`
	UniqueID            string      `json:"unique_id"`
	UnitOfMeasurement   string      `json:"unit_of_measurement,omitempty"`
	DeviceClass         string      `json:"device_class,omitempty"`
	JSONAttributesTopic string      `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string      `json:"value_template,omitempty"`
	SourceType          string      `json:"source_type,omitempty"`
	Min                 int         `json:"min,omitempty"`
	Max                 int         `json:"max,omitempty"`
	Icon                string      `json:"icon,omitempty"`
	Device              *deviceInfo `json:"device,omitempty"`
}

// Discovery publishes the per-vehicle entity descriptors once per
// established session so a home-automation hub can auto-configure.
type Discovery struct {
	pub       Publisher
	baseTopic string
	prefix    string
	log       logger.Logger
}

// NewDiscovery creates a Discovery publishing under prefix.
func NewDiscovery(pub Publisher, baseTopic, prefix string, log logger.Logger) *Discovery {
	return &Discovery{pub: pub, baseTopic: baseTopic, prefix: prefix, log: log}
}

// Announce publishes the descriptors for every exposed sensor, number and
// device tracker entity. Unique identifiers derive from the VIN, display
// names from the vehicle name.
func (d *Discovery) Announce(ident tesla.Identity) error {
	vin := ident.VIN
	device := &deviceInfo{Identifiers: []string{vin + "_device"}}

	entities := []struct {
		component string
		object    string
		config    entityConfig
	}{
		{"sensor", "charging", entityConfig{
			Name:       ident.Name + " Charging State",
			StateTopic: d.baseTopic + "/charging",
			UniqueID:   vin + "_charging",
			Icon:       "mdi:ev-station",
			Device:     device,
		}},
		{"sensor", "battery", entityConfig{
			Name:              ident.Name + " Battery Level",
			StateTopic:        d.baseTopic + "/battery_level",
			UniqueID:          vin + "_battery_level",
			UnitOfMeasurement: "%",
			DeviceClass:       "battery",
			Device: &deviceInfo{
				Identifiers:  []string{vin + "_device"},
				Name:         ident.Name + " Vehicle",
				Manufacturer: "Tesla",
				Model:        formatModel(ident.CarType, ident.TrimBadging),
			},
		}},
		{"sensor", "timetofull", entityConfig{
			Name:              ident.Name + " Time to Full",
			StateTopic:        d.baseTopic + "/time_to_full",
			UniqueID:          vin + "_time_to_full",
			UnitOfMeasurement: "h",
			Icon:              "hass:clock-fast",
			Device:            device,
		}},
		{"number", "chargelimit", entityConfig{
			Name:         ident.Name + " Charge Limit",
			StateTopic:   d.baseTopic + "/charge_limit",
			CommandTopic: d.baseTopic + "/charge_limit/set",
			UniqueID:     vin + "_charge_limit",
			Min:          50,
			Max:          100,
			Icon:         "hass:battery-alert",
			Device:       device,
		}},
		{"device_tracker", "gps", entityConfig{
			Name:                ident.Name + " Location",
			StateTopic:          d.baseTopic + "/gps",
			JSONAttributesTopic: d.baseTopic + "/gps",
			ValueTemplate:       "{{value_json.state}}",
			UniqueID:            vin + "_gps",
			SourceType:          "gps",
			Icon:                "mdi:crosshairs-gps",
			Device:              device,
		}},
	}

	for _, e := range entities {
		topic := fmt.Sprintf("%s/%s/%s/%s/config", d.prefix, e.component, vin, e.object)
		payload, err := json.Marshal(e.config)
		if err != nil {
			return err
		}
		if err := d.pub.Publish(topic, string(payload)); err != nil {
			return fmt.Errorf("announce %s: %w", topic, err)
		}
	}
	d.log.Infof("announced %d discovery entities for %s", len(entities), vin)
	return nil
}

// formatModel renders the API's car type and trim badging as a display
// model name, e.g. ("models2", "p90d") becomes "Model S 2 P90D".
func formatModel(carType, trim string) string {
	model := carType
	if len(model) > 1 {
		model = model[:len(model)-1] + " " + model[len(model)-1:]
	}
	model = titleWords(model)
	if trim != "" {
		model += " " + strings.ToUpper(trim)
	}
	return model
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
