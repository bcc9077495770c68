package metrics

import "time"

// PublishKind classifies an MQTT publish.
type PublishKind string

const (
	KindConfig       PublishKind = "config"
	KindState        PublishKind = "state"
	KindAvailability PublishKind = "availability"
	KindCommand      PublishKind = "command"
)

// PublishEvent describes one MQTT publish attempt.
type PublishEvent struct {
	Topic   string
	Kind    PublishKind
	Success bool
	Time    time.Time
}

// MetricsSink records bridge activity for observability purposes.
type MetricsSink interface {
	RecordPublish(ev PublishEvent) error
}

// Trigger identifies what started a diagnostics cycle.
type Trigger string

const (
	TriggerTimer   Trigger = "timer"
	TriggerCommand Trigger = "command"
)

// CycleEvent summarizes one diagnostics refresh.
type CycleEvent struct {
	VIN         string
	Trigger     Trigger
	Diagnostics int
	NewConfigs  int
	Duration    time.Duration
	Success     bool
	Time        time.Time
}

// CycleRecorder records diagnostics cycles.
type CycleRecorder interface {
	RecordCycle(ev CycleEvent) error
}

// CommandEvent captures the outcome of a vehicle command.
type CommandEvent struct {
	VIN     string
	Command string
	Success bool
	Latency time.Duration
	Time    time.Time
}

// CommandRecorder records vehicle commands.
type CommandRecorder interface {
	RecordCommand(ev CommandEvent) error
}

// TelemetryPoint is one numeric diagnostic reading.
type TelemetryPoint struct {
	VIN        string
	Diagnostic string
	Element    string
	Unit       string
	Value      float64
	Time       time.Time
}

// TelemetryRecorder persists diagnostic readings.
type TelemetryRecorder interface {
	RecordTelemetry(points []TelemetryPoint) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPublish(PublishEvent) error       { return nil }
func (NopSink) RecordCycle(CycleEvent) error           { return nil }
func (NopSink) RecordCommand(CommandEvent) error       { return nil }
func (NopSink) RecordTelemetry([]TelemetryPoint) error { return nil }
