package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/vehicle2mqtt/core/metrics"
)

// MultiSink fans out bridge events to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPublish forwards the event to all sinks. A failing sink does not
// starve the others.
func (m *MultiSink) RecordPublish(ev coremetrics.PublishEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordPublish(ev))
	}
	return errors.Join(errs...)
}

// RecordCycle forwards cycle events when supported by the sink.
func (m *MultiSink) RecordCycle(ev coremetrics.CycleEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CycleRecorder); ok {
			errs = append(errs, rec.RecordCycle(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordCommand forwards command events when supported by the sink.
func (m *MultiSink) RecordCommand(ev coremetrics.CommandEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CommandRecorder); ok {
			errs = append(errs, rec.RecordCommand(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordTelemetry forwards diagnostic readings when supported by the sink.
func (m *MultiSink) RecordTelemetry(points []coremetrics.TelemetryPoint) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.TelemetryRecorder); ok {
			errs = append(errs, rec.RecordTelemetry(points))
		}
	}
	return errors.Join(errs...)
}
