package vehicleapi

import (
	"fmt"
	"strings"
	"time"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.gm.com"

// Config defines how to reach and authenticate against the vehicle API.
type Config struct {
	// BaseURL is the API root, without the /api/v1 suffix. Defaults to
	// DefaultBaseURL.
	BaseURL string `json:"base_url"`
	// TokenURL defaults to <base_url>/oauth/token.
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	PIN          string `json:"pin"`
	DeviceID     string `json:"device_id"`
	// VIN selects the vehicle; empty picks the first vehicle of the account.
	VIN            string `json:"vin"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	PollIntervalMS int    `json:"poll_interval_ms"`
	PollTimeoutMS  int    `json:"poll_timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.TokenURL == "" {
		c.TokenURL = c.BaseURL + "/oauth/token"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = 6000
	}
	if c.PollTimeoutMS <= 0 {
		c.PollTimeoutMS = 90000
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("vehicle base_url is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("vehicle username and password are required")
	}
	if c.DeviceID == "" {
		return fmt.Errorf("vehicle device_id is required")
	}
	return nil
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c Config) pollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMS) * time.Millisecond
}
