package config

import (
	"fmt"
	"strings"
	"time"
)

// BridgeConfig controls the discovery prefix, the refresh cycle and the
// command channel.
type BridgeConfig struct {
	Prefix        string `json:"prefix"`
	RefreshMS     int    `json:"refresh_ms"`
	AllowCommands *bool  `json:"allow_commands"`
	// StatusAddr is the listen address of the /api/status and /healthz
	// endpoints. When empty they are mounted on the Prometheus server, and
	// are not served at all unless metrics.prometheus_enabled is set.
	StatusAddr string `json:"status_addr"`
	// StatusToken protects the status endpoint when set.
	StatusToken string `json:"status_token"`
}

// SetDefaults applies sane defaults.
func (c *BridgeConfig) SetDefaults() {
	if c.Prefix == "" {
		c.Prefix = "homeassistant"
	}
	c.Prefix = strings.TrimSuffix(c.Prefix, "/")
	if c.RefreshMS <= 0 {
		c.RefreshMS = 30 * 60 * 1000
	}
	if c.AllowCommands == nil {
		allow := true
		c.AllowCommands = &allow
	}
}

// Validate checks the prefix is a usable topic segment.
func (c BridgeConfig) Validate() error {
	if c.Prefix == "" || strings.ContainsAny(c.Prefix, "+#") {
		return fmt.Errorf("invalid discovery prefix %q", c.Prefix)
	}
	return nil
}

// CommandsAllowed reports whether the command topic is subscribed.
func (c BridgeConfig) CommandsAllowed() bool {
	return c.AllowCommands == nil || *c.AllowCommands
}

// Refresh returns the diagnostics refresh interval.
func (c BridgeConfig) Refresh() time.Duration {
	return time.Duration(c.RefreshMS) * time.Millisecond
}
