package commands

import (
	"context"
	"time"

	"github.com/kilianp07/vehicle2mqtt/core/logger"
	"github.com/kilianp07/vehicle2mqtt/core/metrics"
	"github.com/kilianp07/vehicle2mqtt/core/monitoring"
	"github.com/kilianp07/vehicle2mqtt/core/publish"
)

// CycleObserver is notified after every diagnostics cycle. res is the zero
// value when the diagnostics request failed.
type CycleObserver func(ev metrics.CycleEvent, res publish.CycleResult)

// Router publishes command results.
type Router struct {
	pub     *publish.Publisher
	sink    metrics.MetricsSink
	log     logger.Logger
	observe CycleObserver
	now     func() time.Time
}

// NewRouter returns a Router publishing through pub. observe may be nil.
func NewRouter(pub *publish.Publisher, sink metrics.MetricsSink, observe CycleObserver, log logger.Logger) *Router {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Router{pub: pub, sink: sink, log: logger.OrNop(log), observe: observe, now: time.Now}
}

// Handle publishes r. Publish errors are logged.
func (rt *Router) Handle(ctx context.Context, r Result) {
	switch r := r.(type) {
	case LocationResult:
		if err := rt.pub.PublishLocation(ctx, r.Lat, r.Lon); err != nil {
			rt.log.Errorf("publish location: %v", err)
		}
	case DiagnosticsResult:
		rt.handleDiagnostics(ctx, r)
	case GenericResult:
		var payload any = Status{Status: StatusSuccess}
		if len(r.Body) > 0 {
			payload = r.Body
		}
		if err := rt.pub.PublishCommandResult(ctx, r.Command, payload); err != nil {
			rt.log.Errorf("publish %s result: %v", r.Command, err)
		}
	case Failure:
		rt.handleFailure(ctx, r)
	}
}

func (rt *Router) handleDiagnostics(ctx context.Context, r DiagnosticsResult) {
	start := rt.now()
	res, err := rt.pub.PublishDiagnostics(ctx, r.Diagnostics)
	if err != nil {
		rt.log.Errorf("publish diagnostics: %v", err)
	}
	if err := rt.pub.PublishDiagnosticsAvailable(ctx, true); err != nil {
		rt.log.Errorf("publish diagnostics availability: %v", err)
	}
	rt.cycle(metrics.CycleEvent{
		Trigger:     r.Trigger,
		Diagnostics: res.Diagnostics,
		NewConfigs:  res.NewConfigs,
		Duration:    r.Elapsed + rt.now().Sub(start),
		Success:     err == nil,
	}, res)
}

func (rt *Router) handleFailure(ctx context.Context, r Failure) {
	rt.log.Errorf("command failed: %v", r.Err)
	monitoring.CaptureException(r.Err, map[string]string{
		"command": r.Command,
		"vin":     rt.pub.Mapper().Vehicle().VIN,
	})
	if !Known(r.Command) {
		return
	}
	status := Status{Status: StatusFailure, Error: r.Err.Error()}
	if err := rt.pub.PublishCommandResult(ctx, r.Command, status); err != nil {
		rt.log.Errorf("publish %s result: %v", r.Command, err)
	}
	if r.Command != Diagnostics {
		return
	}
	if err := rt.pub.PublishDiagnosticsAvailable(ctx, false); err != nil {
		rt.log.Errorf("publish diagnostics availability: %v", err)
	}
	rt.cycle(metrics.CycleEvent{Trigger: r.Trigger, Success: false}, publish.CycleResult{})
}

func (rt *Router) cycle(ev metrics.CycleEvent, res publish.CycleResult) {
	ev.VIN = rt.pub.Mapper().Vehicle().VIN
	ev.Time = rt.now()
	if ev.Trigger == "" {
		ev.Trigger = metrics.TriggerCommand
	}
	if rec, ok := rt.sink.(metrics.CycleRecorder); ok {
		if err := rec.RecordCycle(ev); err != nil {
			rt.log.Warnf("record cycle: %v", err)
		}
	}
	if rt.observe != nil {
		rt.observe(ev, res)
	}
}
