package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/vehicle2mqtt/core/diagnostic"
	"github.com/kilianp07/vehicle2mqtt/core/logger"
	"github.com/kilianp07/vehicle2mqtt/core/metrics"
	"github.com/kilianp07/vehicle2mqtt/core/model"
	"github.com/kilianp07/vehicle2mqtt/core/monitoring"
	"github.com/kilianp07/vehicle2mqtt/core/vehicleapi"
)

// Handler consumes command results.
type Handler interface {
	Handle(ctx context.Context, r Result)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, r Result)

// Handle calls f(ctx, r).
func (f HandlerFunc) Handle(ctx context.Context, r Result) { f(ctx, r) }

type action func(ctx context.Context, d *Dispatcher, req Request) (Result, error)

var actions = map[string]action{
	GetAccountVehicles: func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		res, err := d.api.GetAccountVehicles(ctx)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(res.Data.Vehicles)
		if err != nil {
			return nil, err
		}
		return GenericResult{Command: req.Command, Body: body}, nil
	},
	StartVehicle:       acknowledge(vehicleapi.API.Start),
	CancelStartVehicle: acknowledge(vehicleapi.API.CancelStart),
	Alert: func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		opts := vehicleapi.AlertRequest{
			Action:   []string{vehicleapi.AlertFlash},
			Delay:    0,
			Duration: 1,
			Override: []string{},
		}
		if err := req.decodeOptions(&opts); err != nil {
			return nil, err
		}
		return generic(req)(d.api.Alert(ctx, opts))
	},
	CancelAlert: acknowledge(vehicleapi.API.CancelAlert),
	LockDoor: func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		var opts vehicleapi.DelayRequest
		if err := req.decodeOptions(&opts); err != nil {
			return nil, err
		}
		return generic(req)(d.api.LockDoor(ctx, opts))
	},
	UnlockDoor: func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		var opts vehicleapi.DelayRequest
		if err := req.decodeOptions(&opts); err != nil {
			return nil, err
		}
		return generic(req)(d.api.UnlockDoor(ctx, opts))
	},
	ChargeOverride:       chargeOverride(vehicleapi.ChargeNow),
	CancelChargeOverride: chargeOverride(vehicleapi.CancelOverride),
	GetChargingProfile:   acknowledge(vehicleapi.API.GetChargingProfile),
	SetChargingProfile: func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		var opts vehicleapi.ChargingProfileRequest
		if err := req.decodeOptions(&opts); err != nil {
			return nil, err
		}
		return generic(req)(d.api.SetChargingProfile(ctx, opts))
	},
	GetLocation: func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		res, err := d.api.Location(ctx)
		if err != nil {
			return nil, err
		}
		loc, err := res.Location()
		if err != nil {
			return nil, err
		}
		lat, lon, err := loc.Coordinates()
		if err != nil {
			return nil, err
		}
		return LocationResult{Command: req.Command, Lat: lat, Lon: lon}, nil
	},
	Diagnostics: func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		var in vehicleapi.DiagnosticsRequest
		if err := req.decodeOptions(&in); err != nil {
			return nil, err
		}
		if len(in.DiagnosticItem) == 0 {
			in.DiagnosticItem = d.vehicle.GetSupported()
		}
		if len(in.DiagnosticItem) == 0 {
			return nil, fmt.Errorf("%w for %s", ErrNoDiagnostics, d.vehicle.VIN)
		}
		res, err := d.api.Diagnostics(ctx, in)
		if err != nil {
			return nil, err
		}
		raw, err := res.Diagnostics()
		if err != nil {
			return nil, err
		}
		return DiagnosticsResult{Command: req.Command, Diagnostics: diagnostic.ParseAll(raw)}, nil
	},
}

// acknowledge wraps an option-less API call whose body is passed through.
func acknowledge(call func(vehicleapi.API, context.Context) (*vehicleapi.Response, error)) action {
	return func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		return generic(req)(call(d.api, ctx))
	}
}

func chargeOverride(mode string) action {
	return func(ctx context.Context, d *Dispatcher, req Request) (Result, error) {
		opts := vehicleapi.ChargeOverrideRequest{Mode: mode}
		if err := req.decodeOptions(&opts); err != nil {
			return nil, err
		}
		return generic(req)(d.api.ChargeOverride(ctx, opts))
	}
}

func generic(req Request) func(*vehicleapi.Response, error) (Result, error) {
	return func(res *vehicleapi.Response, err error) (Result, error) {
		if err != nil {
			return nil, err
		}
		return GenericResult{Command: req.Command, Body: res.Body()}, nil
	}
}

// Dispatcher executes commands against the vehicle API for one vehicle.
type Dispatcher struct {
	api     vehicleapi.API
	vehicle model.Vehicle
	handler Handler
	sink    metrics.MetricsSink
	log     logger.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher returns a Dispatcher delivering asynchronous results to h.
func NewDispatcher(api vehicleapi.API, v model.Vehicle, h Handler, sink metrics.MetricsSink, log logger.Logger) *Dispatcher {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if h == nil {
		h = HandlerFunc(func(context.Context, Result) {})
	}
	return &Dispatcher{api: api, vehicle: v, handler: h, sink: sink, log: logger.OrNop(log), now: time.Now}
}

// Execute runs req synchronously. It never returns nil; errors are reported
// as Failure.
func (d *Dispatcher) Execute(ctx context.Context, req Request) Result {
	act, ok := actions[req.Command]
	if !ok {
		return Failure{Command: req.Command, Trigger: req.trigger(), Err: fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)}
	}
	start := d.now()
	res, err := act(ctx, d, req)
	elapsed := d.now().Sub(start)
	d.record(req.Command, err == nil, elapsed)
	if err != nil {
		return Failure{Command: req.Command, Trigger: req.trigger(), Err: fmt.Errorf("%s: %w", req.Command, err)}
	}
	if dr, ok := res.(DiagnosticsResult); ok {
		dr.Trigger = req.trigger()
		dr.Elapsed = elapsed
		res = dr
	}
	return res
}

// Dispatch runs req in its own goroutine and hands the result to the
// handler. Unknown commands are rejected without a call, and so is every
// command once Wait has been called.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	if !Known(req.Command) {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("%w: %s", ErrDispatcherClosed, req.Command)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer monitoring.Recover()
		d.handler.Handle(ctx, d.Execute(ctx, req))
	}()
	return nil
}

// HandleMessage decodes a command message and dispatches it. Malformed and
// unknown commands are logged and dropped.
func (d *Dispatcher) HandleMessage(ctx context.Context, payload []byte) {
	req, err := Decode(payload)
	if err != nil {
		d.log.Errorf("drop command message %q: %v", payload, err)
		return
	}
	if sl, ok := d.log.(logger.StructuredLogger); ok {
		sl.Infow("command received", map[string]any{"command": req.Command, "options": string(req.Options)})
	} else {
		d.log.Infof("command received: %s", req.Command)
	}
	if err := d.Dispatch(ctx, req); err != nil {
		d.log.Warnf("drop command: %v", err)
	}
}

// Wait stops accepting commands and blocks until every dispatched command
// has been handled.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) record(command string, ok bool, latency time.Duration) {
	rec, isRec := d.sink.(metrics.CommandRecorder)
	if !isRec {
		return
	}
	ev := metrics.CommandEvent{VIN: d.vehicle.VIN, Command: command, Success: ok, Latency: latency, Time: d.now()}
	if err := rec.RecordCommand(ev); err != nil {
		d.log.Warnf("record command: %v", err)
	}
}
