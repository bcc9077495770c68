package vehicleapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Response wraps a remote API reply.
type Response struct {
	Status string       `json:"status"`
	Data   ResponseData `json:"data"`
}

// ResponseData holds the decoded body. Only one member is set per call.
type ResponseData struct {
	Vehicles        *VehicleList     `json:"vehicles,omitempty"`
	CommandResponse *CommandResponse `json:"commandResponse,omitempty"`
}

// VehicleList is the account vehicle listing.
type VehicleList struct {
	Size    string    `json:"size,omitempty"`
	Vehicle []Vehicle `json:"vehicle"`
}

// Vehicle is a vehicle as listed by the account endpoint.
type Vehicle struct {
	VIN      string          `json:"vin"`
	Make     string          `json:"make"`
	Model    string          `json:"model"`
	Year     string          `json:"year"`
	Commands VehicleCommands `json:"commands"`
}

// VehicleCommands lists the commands a vehicle supports.
type VehicleCommands struct {
	Command []VehicleCommand `json:"command"`
}

// VehicleCommand describes one supported command.
type VehicleCommand struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	CommandData *CommandData `json:"commandData,omitempty"`
}

// CommandData carries per-command metadata.
type CommandData struct {
	SupportedDiagnostics *SupportedDiagnostics `json:"supportedDiagnostics,omitempty"`
}

// SupportedDiagnostics lists diagnostic group names.
type SupportedDiagnostics struct {
	SupportedDiagnostic []string `json:"supportedDiagnostic"`
}

// CommandResponse is the status and body of an asynchronous command.
type CommandResponse struct {
	RequestTime    string          `json:"requestTime,omitempty"`
	CompletionTime string          `json:"completionTime,omitempty"`
	URL            string          `json:"url,omitempty"`
	Status         string          `json:"status"`
	Type           string          `json:"type,omitempty"`
	Body           json.RawMessage `json:"body,omitempty"`
}

// Command statuses.
const (
	StatusInProgress = "inProgress"
	StatusSuccess    = "success"
	StatusFailure    = "failure"
)

// DiagnosticResponse is a raw diagnostic group.
type DiagnosticResponse struct {
	Name              string       `json:"name"`
	DiagnosticElement []RawElement `json:"diagnosticElement"`
}

// RawElement is one entry of a diagnostic group. Value and Unit are nil when
// the API omits them.
type RawElement struct {
	Name    string
	Status  string
	Message string
	Value   *string
	Unit    *string
}

// UnmarshalJSON accepts values encoded either as strings or as numbers.
func (e *RawElement) UnmarshalJSON(b []byte) error {
	var aux struct {
		Name    string          `json:"name"`
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Value   json.RawMessage `json:"value"`
		Unit    *string         `json:"unit"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Name, e.Status, e.Message, e.Unit = aux.Name, aux.Status, aux.Message, aux.Unit
	v, ok, err := flexString(aux.Value)
	if err != nil {
		return fmt.Errorf("element %s value: %w", aux.Name, err)
	}
	e.Value = nil
	if ok {
		e.Value = &v
	}
	return nil
}

// flexString decodes a JSON string or a bare scalar into its text form.
// ok is false for absent or null values.
func flexString(raw json.RawMessage) (s string, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}
	if raw[0] != '"' {
		return string(raw), true, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, true, nil
}

// MarshalJSON writes the element back in the API shape.
func (e RawElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string  `json:"name"`
		Status  string  `json:"status,omitempty"`
		Message string  `json:"message,omitempty"`
		Value   *string `json:"value,omitempty"`
		Unit    *string `json:"unit,omitempty"`
	}{e.Name, e.Status, e.Message, e.Value, e.Unit})
}

// Location is the reported vehicle position.
type Location struct {
	Lat  string `json:"lat"`
	Long string `json:"long"`
}

// Coordinates parses the position as decimal degrees.
func (l Location) Coordinates() (lat, lon float64, err error) {
	if lat, err = strconv.ParseFloat(l.Lat, 64); err != nil {
		return 0, 0, fmt.Errorf("latitude %q: %w", l.Lat, err)
	}
	if lon, err = strconv.ParseFloat(l.Long, 64); err != nil {
		return 0, 0, fmt.Errorf("longitude %q: %w", l.Long, err)
	}
	return lat, lon, nil
}

// UnmarshalJSON accepts coordinates encoded as strings or numbers.
func (l *Location) UnmarshalJSON(b []byte) error {
	var aux struct {
		Lat  json.RawMessage `json:"lat"`
		Long json.RawMessage `json:"long"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	if l.Lat, _, err = flexString(aux.Lat); err != nil {
		return fmt.Errorf("lat: %w", err)
	}
	if l.Long, _, err = flexString(aux.Long); err != nil {
		return fmt.Errorf("long: %w", err)
	}
	return nil
}

type commandBody struct {
	DiagnosticResponse []DiagnosticResponse `json:"diagnosticResponse"`
	Location           *Location            `json:"location"`
}

func (r *Response) body() (commandBody, error) {
	var body commandBody
	if r == nil || r.Data.CommandResponse == nil || len(r.Data.CommandResponse.Body) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(r.Data.CommandResponse.Body, &body); err != nil {
		return body, fmt.Errorf("decode command body: %w", err)
	}
	return body, nil
}

// Vehicles returns the vehicles listed under data.vehicles.vehicle.
func (r *Response) Vehicles() []Vehicle {
	if r == nil || r.Data.Vehicles == nil {
		return nil
	}
	return r.Data.Vehicles.Vehicle
}

// Diagnostics returns data.commandResponse.body.diagnosticResponse.
func (r *Response) Diagnostics() ([]DiagnosticResponse, error) {
	body, err := r.body()
	if err != nil {
		return nil, err
	}
	return body.DiagnosticResponse, nil
}

// Location returns data.commandResponse.body.location.
func (r *Response) Location() (Location, error) {
	body, err := r.body()
	if err != nil {
		return Location{}, err
	}
	if body.Location == nil {
		return Location{}, fmt.Errorf("response has no location")
	}
	return *body.Location, nil
}

// Body returns the raw command body, if any.
func (r *Response) Body() json.RawMessage {
	if r == nil || r.Data.CommandResponse == nil {
		return nil
	}
	return r.Data.CommandResponse.Body
}
