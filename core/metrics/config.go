package metrics

import "fmt"

// Config defines settings for metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults fills the listen address.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = ":9100"
	}
}

// Validate checks the InfluxDB settings when enabled.
func (c Config) Validate() error {
	if !c.InfluxEnabled {
		return nil
	}
	if c.InfluxURL == "" || c.InfluxOrg == "" || c.InfluxBucket == "" {
		return fmt.Errorf("influx requires influx_url, influx_org and influx_bucket")
	}
	return nil
}
