package commands

import (
	"encoding/json"
	"time"

	"github.com/kilianp07/vehicle2mqtt/core/diagnostic"
	"github.com/kilianp07/vehicle2mqtt/core/metrics"
)

// Result is the outcome of a command. It is one of LocationResult,
// DiagnosticsResult, GenericResult or Failure.
type Result interface {
	CommandName() string
	isResult()
}

// LocationResult carries the vehicle position.
type LocationResult struct {
	Command string
	Lat     float64
	Lon     float64
}

// DiagnosticsResult carries the parsed diagnostics.
type DiagnosticsResult struct {
	Command     string
	Trigger     metrics.Trigger
	Diagnostics []diagnostic.Diagnostic
	Elapsed     time.Duration
}

// GenericResult carries the raw command body. Body is empty for commands
// that only acknowledge.
type GenericResult struct {
	Command string
	Body    json.RawMessage
}

// Failure reports a command that did not complete.
type Failure struct {
	Command string
	Trigger metrics.Trigger
	Err     error
}

func (r LocationResult) CommandName() string    { return r.Command }
func (r DiagnosticsResult) CommandName() string { return r.Command }
func (r GenericResult) CommandName() string     { return r.Command }
func (r Failure) CommandName() string           { return r.Command }

func (LocationResult) isResult()    {}
func (DiagnosticsResult) isResult() {}
func (GenericResult) isResult()     {}
func (Failure) isResult()           {}

// Status is published on the command result topic when a command has no
// body to report.
type Status struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)
