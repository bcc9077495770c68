package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/vehicle2mqtt/core/metrics"
)

// PromSink records bridge activity in Prometheus metrics.
type PromSink struct {
	publishes       *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	cycleDuration   *prometheus.HistogramVec
	commands        *prometheus.CounterVec
	commandLatency  *prometheus.HistogramVec
	diagnosticValue *prometheus.GaugeVec
}

// NewPromSink registers bridge metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_publishes_total",
			Help: "Total number of MQTT publishes by kind and outcome",
		}, []string{"kind", "success"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diagnostics_cycles_total",
			Help: "Total number of diagnostics refreshes",
		}, []string{"vin", "trigger", "success"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diagnostics_cycle_duration_seconds",
			Help:    "Time spent fetching and publishing diagnostics",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"vin", "trigger"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vehicle_commands_total",
			Help: "Total number of vehicle commands by name and outcome",
		}, []string{"vin", "command", "success"}),
		commandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vehicle_command_latency_seconds",
			Help:    "Time between command request and completion",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"vin", "command"}),
		diagnosticValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vehicle_diagnostic_value",
			Help: "Last numeric value reported for a diagnostic element",
		}, []string{"vin", "diagnostic", "element", "unit"}),
	}

	var err error
	if s.publishes, err = register(reg, s.publishes); err != nil {
		return nil, err
	}
	if s.cycles, err = register(reg, s.cycles); err != nil {
		return nil, err
	}
	if s.cycleDuration, err = register(reg, s.cycleDuration); err != nil {
		return nil, err
	}
	if s.commands, err = register(reg, s.commands); err != nil {
		return nil, err
	}
	if s.commandLatency, err = register(reg, s.commandLatency); err != nil {
		return nil, err
	}
	if s.diagnosticValue, err = register(reg, s.diagnosticValue); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c is a duplicate.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPublish increments the publish counter.
func (s *PromSink) RecordPublish(ev coremetrics.PublishEvent) error {
	s.publishes.WithLabelValues(string(ev.Kind), strconv.FormatBool(ev.Success)).Inc()
	return nil
}

// RecordCycle counts the cycle and observes its duration.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.VIN, string(ev.Trigger), strconv.FormatBool(ev.Success)).Inc()
	if ev.Success {
		s.cycleDuration.WithLabelValues(ev.VIN, string(ev.Trigger)).Observe(ev.Duration.Seconds())
	}
	return nil
}

// RecordCommand counts the command and observes its latency.
func (s *PromSink) RecordCommand(ev coremetrics.CommandEvent) error {
	s.commands.WithLabelValues(ev.VIN, ev.Command, strconv.FormatBool(ev.Success)).Inc()
	s.commandLatency.WithLabelValues(ev.VIN, ev.Command).Observe(ev.Latency.Seconds())
	return nil
}

// RecordTelemetry sets the diagnostic value gauges.
func (s *PromSink) RecordTelemetry(points []coremetrics.TelemetryPoint) error {
	for _, p := range points {
		s.diagnosticValue.WithLabelValues(p.VIN, p.Diagnostic, p.Element, p.Unit).Set(p.Value)
	}
	return nil
}
