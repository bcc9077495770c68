// Package vehicleapi implements the remote vehicle API over HTTP.
package vehicleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	core "github.com/kilianp07/vehicle2mqtt/core/vehicleapi"
	"github.com/kilianp07/vehicle2mqtt/infra/logger"
)

// ErrCommandTimeout is returned when a command is still in progress after
// the poll timeout.
var ErrCommandTimeout = errors.New("vehicle command timed out")

var errInProgress = errors.New("command in progress")

const maxBody = 4 << 20

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Client talks to the vehicle API on behalf of one account.
type Client struct {
	http         *http.Client
	base         string
	vin          string
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          logger.Logger
}

var _ core.API = (*Client)(nil)

// New returns a Client authenticating with OAuth2 client credentials. The
// account credentials travel as token endpoint parameters.
func New(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		EndpointParams: url.Values{
			"username":  {cfg.Username},
			"password":  {cfg.Password},
			"device_id": {cfg.DeviceID},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if cfg.PIN != "" {
		cc.EndpointParams.Set("pin", cfg.PIN)
	}
	base := &http.Client{Timeout: cfg.timeout()}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	hc := cc.Client(ctx)
	hc.Timeout = cfg.timeout()

	return &Client{
		http:         hc,
		base:         cfg.BaseURL + "/api/v1",
		vin:          cfg.VIN,
		pollInterval: cfg.pollInterval(),
		pollTimeout:  cfg.pollTimeout(),
		log:          logger.New("vehicle-api"),
	}, nil
}

// WithVIN returns a copy of c issuing commands for vin.
func (c *Client) WithVIN(vin string) *Client {
	cp := *c
	cp.vin = vin
	return &cp
}

// VIN returns the vehicle commands are issued for.
func (c *Client) VIN() string { return c.vin }

func (c *Client) GetAccountVehicles(ctx context.Context) (*core.Response, error) {
	return c.do(ctx, http.MethodGet, c.base+"/account/vehicles?includeCommands=true", nil)
}

func (c *Client) Diagnostics(ctx context.Context, req core.DiagnosticsRequest) (*core.Response, error) {
	return c.command(ctx, "diagnostics", map[string]any{"diagnosticsRequest": req})
}

func (c *Client) Location(ctx context.Context) (*core.Response, error) {
	return c.command(ctx, "location", struct{}{})
}

func (c *Client) Start(ctx context.Context) (*core.Response, error) {
	return c.command(ctx, "start", struct{}{})
}

func (c *Client) CancelStart(ctx context.Context) (*core.Response, error) {
	return c.command(ctx, "cancelStart", struct{}{})
}

func (c *Client) Alert(ctx context.Context, req core.AlertRequest) (*core.Response, error) {
	return c.command(ctx, "alert", map[string]any{"alertRequest": req})
}

func (c *Client) CancelAlert(ctx context.Context) (*core.Response, error) {
	return c.command(ctx, "cancelAlert", struct{}{})
}

func (c *Client) LockDoor(ctx context.Context, req core.DelayRequest) (*core.Response, error) {
	return c.command(ctx, "lockDoor", map[string]any{"lockDoorRequest": req})
}

func (c *Client) UnlockDoor(ctx context.Context, req core.DelayRequest) (*core.Response, error) {
	return c.command(ctx, "unlockDoor", map[string]any{"unlockDoorRequest": req})
}

func (c *Client) ChargeOverride(ctx context.Context, req core.ChargeOverrideRequest) (*core.Response, error) {
	return c.command(ctx, "chargeOverride", map[string]any{"chargeOverrideRequest": req})
}

func (c *Client) GetChargingProfile(ctx context.Context) (*core.Response, error) {
	return c.command(ctx, "getChargingProfile", struct{}{})
}

func (c *Client) SetChargingProfile(ctx context.Context, req core.ChargingProfileRequest) (*core.Response, error) {
	return c.command(ctx, "setChargingProfile", map[string]any{"chargingProfile": req})
}

// command posts a vehicle command and waits for its completion.
func (c *Client) command(ctx context.Context, name string, body any) (*core.Response, error) {
	if c.vin == "" {
		return nil, fmt.Errorf("%s: no vehicle selected", name)
	}
	u := fmt.Sprintf("%s/account/vehicles/%s/commands/%s", c.base, url.PathEscape(c.vin), name)
	res, err := c.do(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, err
	}
	cr := res.Data.CommandResponse
	if cr == nil {
		return res, nil
	}
	switch cr.Status {
	case core.StatusSuccess:
		return res, nil
	case core.StatusFailure:
		return nil, fmt.Errorf("%w: %s", core.ErrCommandFailed, name)
	}
	if cr.URL == "" {
		return nil, fmt.Errorf("%s: in progress without request url", name)
	}
	return c.poll(ctx, name, cr.URL)
}

// poll follows a command request until it leaves the in-progress state.
func (c *Client) poll(ctx context.Context, name, requestURL string) (*core.Response, error) {
	var out *core.Response
	op := func() error {
		res, err := c.do(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		cr := res.Data.CommandResponse
		if cr == nil {
			return backoff.Permanent(fmt.Errorf("%s: reply without commandResponse", name))
		}
		switch cr.Status {
		case core.StatusSuccess:
			out = res
			return nil
		case core.StatusFailure:
			return backoff.Permanent(fmt.Errorf("%w: %s", core.ErrCommandFailed, name))
		default:
			return errInProgress
		}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 4 * c.pollInterval
	b.Multiplier = 1.5
	b.MaxElapsedTime = c.pollTimeout
	b.Reset()
	notify := func(err error, next time.Duration) {
		c.log.Debugf("%s: %v, retrying in %s", name, err, next)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if errors.Is(err, errInProgress) {
			return nil, fmt.Errorf("%w: %s", ErrCommandTimeout, name)
		}
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, u string, body any) (*core.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	c.log.Debugf("%s %s -> %d", method, u, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: u, Code: resp.StatusCode, Body: truncate(string(data), 256)}
	}
	res := &core.Response{Status: core.StatusSuccess}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &res.Data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", u, err)
		}
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
