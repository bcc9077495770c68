// Package vehicleapi defines the boundary to the remote vehicle API: the
// capability set the bridge consumes and the response shapes it decodes.
package vehicleapi

import (
	"context"
	"errors"
)

// ErrCommandFailed is returned when the remote API reports a failed command.
var ErrCommandFailed = errors.New("vehicle command failed")

// API is the set of remote operations the bridge can invoke. Implementations
// own authentication, request status polling, retries and timeouts.
type API interface {
	GetAccountVehicles(ctx context.Context) (*Response, error)
	Diagnostics(ctx context.Context, req DiagnosticsRequest) (*Response, error)
	Location(ctx context.Context) (*Response, error)
	Start(ctx context.Context) (*Response, error)
	CancelStart(ctx context.Context) (*Response, error)
	Alert(ctx context.Context, req AlertRequest) (*Response, error)
	CancelAlert(ctx context.Context) (*Response, error)
	LockDoor(ctx context.Context, req DelayRequest) (*Response, error)
	UnlockDoor(ctx context.Context, req DelayRequest) (*Response, error)
	ChargeOverride(ctx context.Context, req ChargeOverrideRequest) (*Response, error)
	GetChargingProfile(ctx context.Context) (*Response, error)
	SetChargingProfile(ctx context.Context, req ChargingProfileRequest) (*Response, error)
}
