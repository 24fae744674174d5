package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sillyfrog/tesla-mqtt/core/bridge"
	"github.com/sillyfrog/tesla-mqtt/core/metrics"
	"github.com/sillyfrog/tesla-mqtt/infra/mqtt"
	"github.com/sillyfrog/tesla-mqtt/infra/tesla"
)

// envPrefix is stripped from environment overrides, e.g.
// TESLA_MQTT__BROKER sets mqtt.broker.
const envPrefix = "TESLA_"

type Config struct {
	Tesla   tesla.Config   `json:"tesla"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Bridge  bridge.Config  `json:"bridge"`
	Metrics metrics.Config `json:"metrics"`
	Debug   bool           `json:"debug"`
}

// Load reads the optional configuration file and applies environment
// overrides. An empty path, or the default path pointing at a missing
// file, yields an environment-only configuration.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			ext := strings.ToLower(filepath.Ext(path))
			var parser koanf.Parser
			switch ext {
			case ".yaml", ".yml":
				parser = yaml.Parser()
			case ".json":
				parser = json.Parser()
			default:
				return nil, fmt.Errorf("unsupported config format: %s", ext)
			}
			if err := k.Load(file.Provider(path), parser); err != nil {
				return nil, err
			}
		}
	}
	if err := k.Load(env.Provider(envPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Bridge.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Tesla.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Bridge.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Tesla.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
