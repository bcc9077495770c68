package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/vehicle2mqtt/core/vehicleapi"
)

// ErrVehicleNotFound is returned when the configured VIN is not part of the
// account.
var ErrVehicleNotFound = errors.New("vehicle not found")

const diagnosticsCommand = "diagnostics"

// Vehicle holds the identity of a vehicle and the diagnostic groups it
// supports.
type Vehicle struct {
	Make                 string
	Model                string
	Year                 string
	VIN                  string
	SupportedDiagnostics []string
}

// FromAPI builds a Vehicle from an account listing entry.
func FromAPI(v vehicleapi.Vehicle) Vehicle {
	out := Vehicle{Make: v.Make, Model: v.Model, Year: v.Year, VIN: v.VIN}
	for _, cmd := range v.Commands.Command {
		if cmd.Name != diagnosticsCommand || cmd.CommandData == nil || cmd.CommandData.SupportedDiagnostics == nil {
			continue
		}
		out.SupportedDiagnostics = append([]string(nil), cmd.CommandData.SupportedDiagnostics.SupportedDiagnostic...)
		break
	}
	return out
}

// Select returns the vehicle with the given VIN from an account listing,
// ignoring case. An empty VIN selects the first vehicle.
func Select(vehicles []vehicleapi.Vehicle, vin string) (Vehicle, error) {
	for _, v := range vehicles {
		if vin == "" || strings.EqualFold(v.VIN, vin) {
			return FromAPI(v), nil
		}
	}
	if vin == "" {
		return Vehicle{}, fmt.Errorf("%w: account has no vehicles", ErrVehicleNotFound)
	}
	return Vehicle{}, fmt.Errorf("%w: %s", ErrVehicleNotFound, vin)
}

// IsSupported reports whether the vehicle supports the diagnostic group.
func (v Vehicle) IsSupported(diag string) bool {
	for _, s := range v.SupportedDiagnostics {
		if s == diag {
			return true
		}
	}
	return false
}

// GetSupported returns the supported diagnostics. With a filter it returns
// the supported entries present in the filter, in supported order.
func (v Vehicle) GetSupported(filter ...string) []string {
	if len(filter) == 0 {
		return append([]string(nil), v.SupportedDiagnostics...)
	}
	want := make(map[string]struct{}, len(filter))
	for _, f := range filter {
		want[f] = struct{}{}
	}
	out := []string{}
	for _, s := range v.SupportedDiagnostics {
		if _, ok := want[s]; ok {
			out = append(out, s)
			delete(want, s)
		}
	}
	return out
}

func (v Vehicle) String() string {
	return fmt.Sprintf("%s %s %s", v.Year, v.Make, v.Model)
}
