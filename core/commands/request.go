// Package commands turns inbound command messages into vehicle API calls and
// routes their outcome back onto the message bus.
package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/vehicle2mqtt/core/metrics"
)

var (
	// ErrUnknownCommand is returned for command names outside the known set.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoDiagnostics is returned when a diagnostics request would name no item.
	ErrNoDiagnostics = errors.New("no diagnostics to request")
	// ErrDispatcherClosed is returned by Dispatch once Wait has been called.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// Command names accepted on the command topic.
const (
	GetAccountVehicles   = "getAccountVehicles"
	StartVehicle         = "startVehicle"
	CancelStartVehicle   = "cancelStartVehicle"
	Alert                = "alert"
	CancelAlert          = "cancelAlert"
	LockDoor             = "lockDoor"
	UnlockDoor           = "unlockDoor"
	ChargeOverride       = "chargeOverride"
	CancelChargeOverride = "cancelChargeOverride"
	GetChargingProfile   = "getChargingProfile"
	SetChargingProfile   = "setChargingProfile"
	GetLocation          = "getLocation"
	Diagnostics          = "diagnostics"
)

// Request is a command message.
type Request struct {
	Command string          `json:"command"`
	Options json.RawMessage `json:"options,omitempty"`

	// Trigger tells diagnostics cycles started by the refresh timer apart
	// from explicit requests. Empty means TriggerCommand.
	Trigger metrics.Trigger `json:"-"`
}

// Decode parses a command message.
func Decode(payload []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, fmt.Errorf("decode command: %w", err)
	}
	if req.Command == "" {
		return Request{}, errors.New("decode command: missing command name")
	}
	return req, nil
}

// Known reports whether name is a supported command.
func Known(name string) bool {
	_, ok := actions[name]
	return ok
}

// Names returns the supported command names.
func Names() []string {
	return []string{
		GetAccountVehicles, StartVehicle, CancelStartVehicle, Alert, CancelAlert,
		LockDoor, UnlockDoor, ChargeOverride, CancelChargeOverride,
		GetChargingProfile, SetChargingProfile, GetLocation, Diagnostics,
	}
}

func (r Request) trigger() metrics.Trigger {
	if r.Trigger == "" {
		return metrics.TriggerCommand
	}
	return r.Trigger
}

// decodeOptions overlays the request options onto dst, which holds the
// defaults. Absent or null options leave dst untouched.
func (r Request) decodeOptions(dst any) error {
	opts := bytes.TrimSpace(r.Options)
	if len(opts) == 0 || bytes.Equal(opts, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(opts, dst); err != nil {
		return fmt.Errorf("%s options: %w", r.Command, err)
	}
	return nil
}
