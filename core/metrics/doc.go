// Package metrics defines the observability boundary of the bridge. The
// base MetricsSink records MQTT publishes; sinks may also implement
// CycleRecorder, CommandRecorder or TelemetryRecorder and callers check for
// those with a type assertion.
package metrics
