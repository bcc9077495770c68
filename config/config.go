// Package config loads the bridge configuration from an optional file and
// the environment.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/vehicle2mqtt/core/metrics"
	"github.com/kilianp07/vehicle2mqtt/infra/logger"
	"github.com/kilianp07/vehicle2mqtt/infra/monitoring"
	"github.com/kilianp07/vehicle2mqtt/infra/mqtt"
	"github.com/kilianp07/vehicle2mqtt/infra/vehicleapi"
)

type Config struct {
	MQTT    mqtt.Config       `json:"mqtt"`
	Vehicle vehicleapi.Config `json:"vehicle"`
	Bridge  BridgeConfig      `json:"bridge"`
	Metrics metrics.Config    `json:"metrics"`
	Logging logger.Config     `json:"logging"`
	Sentry  monitoring.Config `json:"sentry"`
}

// legacyEnv maps the historical environment variable names onto config keys.
var legacyEnv = map[string]string{
	"ONSTAR_VIN":            "vehicle.vin",
	"ONSTAR_USERNAME":       "vehicle.username",
	"ONSTAR_PASSWORD":       "vehicle.password",
	"ONSTAR_PIN":            "vehicle.pin",
	"ONSTAR_DEVICEID":       "vehicle.device_id",
	"ONSTAR_REFRESH":        "bridge.refresh_ms",
	"ONSTAR_ALLOW_COMMANDS": "bridge.allow_commands",
	"MQTT_HOST":             "mqtt.host",
	"MQTT_PORT":             "mqtt.port",
	"MQTT_USERNAME":         "mqtt.username",
	"MQTT_PASSWORD":         "mqtt.password",
	"MQTT_TLS":              "mqtt.use_tls",
	"MQTT_PREFIX":           "bridge.prefix",
	"LOG_LEVEL":             "logging.level",
}

// Load reads the configuration. path may be empty, in which case only the
// environment is used. K_ variables use "__" as the section separator
// (K_MQTT__HOST); legacy names are applied last.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Vehicle.SetDefaults()
	if c.Vehicle.DeviceID == "" {
		c.Vehicle.DeviceID = uuid.NewString()
	}
	c.Bridge.SetDefaults()
	c.Metrics.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Vehicle.Validate(); err != nil {
		return err
	}
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
