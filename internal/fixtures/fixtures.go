// Package fixtures embeds canned vehicle API replies. They back the API
// simulator and the package tests.
package fixtures

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/kilianp07/vehicle2mqtt/core/vehicleapi"
)

//go:embed data/*.json
var data embed.FS

// Fixture names.
const (
	Diagnostics     = "diagnostics"
	Vehicles        = "vehicles"
	Location        = "location"
	ChargingProfile = "charging_profile"
	CommandSuccess  = "command_success"
)

// Raw returns the JSON body of the named fixture.
func Raw(name string) ([]byte, error) {
	b, err := data.ReadFile("data/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", name, err)
	}
	return b, nil
}

// Response decodes the named fixture as the data member of a successful reply.
func Response(name string) (*vehicleapi.Response, error) {
	b, err := Raw(name)
	if err != nil {
		return nil, err
	}
	res := &vehicleapi.Response{Status: "success"}
	if err := json.Unmarshal(b, &res.Data); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", name, err)
	}
	return res, nil
}

// MustResponse is Response for fixtures known to be valid.
func MustResponse(name string) *vehicleapi.Response {
	res, err := Response(name)
	if err != nil {
		panic(err)
	}
	return res
}

// DiagnosticGroup returns the i-th raw diagnostic group of the diagnostics
// fixture.
func DiagnosticGroup(i int) vehicleapi.DiagnosticResponse {
	groups, err := MustResponse(Diagnostics).Diagnostics()
	if err != nil {
		panic(err)
	}
	return groups[i]
}
