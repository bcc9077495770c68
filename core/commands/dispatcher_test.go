package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vehicle2mqtt/core/metrics"
	"github.com/kilianp07/vehicle2mqtt/core/model"
	"github.com/kilianp07/vehicle2mqtt/core/vehicleapi"
	"github.com/kilianp07/vehicle2mqtt/internal/fixtures"
)

type call struct {
	Name string
	Opts any
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeAPI) do(name string, opts any, fixture string) (*vehicleapi.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{Name: name, Opts: opts})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return fixtures.MustResponse(fixture), nil
}

func (f *fakeAPI) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeAPI) GetAccountVehicles(context.Context) (*vehicleapi.Response, error) {
	return f.do("getAccountVehicles", nil, fixtures.Vehicles)
}
func (f *fakeAPI) Diagnostics(_ context.Context, r vehicleapi.DiagnosticsRequest) (*vehicleapi.Response, error) {
	return f.do("diagnostics", r, fixtures.Diagnostics)
}
func (f *fakeAPI) Location(context.Context) (*vehicleapi.Response, error) {
	return f.do("location", nil, fixtures.Location)
}
func (f *fakeAPI) Start(context.Context) (*vehicleapi.Response, error) {
	return f.do("start", nil, fixtures.CommandSuccess)
}
func (f *fakeAPI) CancelStart(context.Context) (*vehicleapi.Response, error) {
	return f.do("cancelStart", nil, fixtures.CommandSuccess)
}
func (f *fakeAPI) Alert(_ context.Context, r vehicleapi.AlertRequest) (*vehicleapi.Response, error) {
	return f.do("alert", r, fixtures.CommandSuccess)
}
func (f *fakeAPI) CancelAlert(context.Context) (*vehicleapi.Response, error) {
	return f.do("cancelAlert", nil, fixtures.CommandSuccess)
}
func (f *fakeAPI) LockDoor(_ context.Context, r vehicleapi.DelayRequest) (*vehicleapi.Response, error) {
	return f.do("lockDoor", r, fixtures.CommandSuccess)
}
func (f *fakeAPI) UnlockDoor(_ context.Context, r vehicleapi.DelayRequest) (*vehicleapi.Response, error) {
	return f.do("unlockDoor", r, fixtures.CommandSuccess)
}
func (f *fakeAPI) ChargeOverride(_ context.Context, r vehicleapi.ChargeOverrideRequest) (*vehicleapi.Response, error) {
	return f.do("chargeOverride", r, fixtures.CommandSuccess)
}
func (f *fakeAPI) GetChargingProfile(context.Context) (*vehicleapi.Response, error) {
	return f.do("getChargingProfile", nil, fixtures.ChargingProfile)
}
func (f *fakeAPI) SetChargingProfile(_ context.Context, r vehicleapi.ChargingProfileRequest) (*vehicleapi.Response, error) {
	return f.do("setChargingProfile", r, fixtures.CommandSuccess)
}

type commandSink struct {
	metrics.NopSink
	mu     sync.Mutex
	events []metrics.CommandEvent
}

func (s *commandSink) RecordCommand(ev metrics.CommandEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

var testVehicle = model.Vehicle{
	Make: "Chevrolet", Model: "Bolt EV", Year: "2020", VIN: "XXX",
	SupportedDiagnostics: []string{"AMBIENT AIR TEMPERATURE", "EV BATTERY LEVEL", "ODOMETER"},
}

func TestDecode(t *testing.T) {
	req, err := Decode([]byte(`{"command":"lockDoor","options":{"delay":5}}`))
	require.NoError(t, err)
	assert.Equal(t, LockDoor, req.Command)
	assert.JSONEq(t, `{"delay":5}`, string(req.Options))

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
	_, err = Decode([]byte(`{"options":{}}`))
	assert.Error(t, err)
}

func TestKnownCommands(t *testing.T) {
	for _, name := range Names() {
		assert.True(t, Known(name), name)
	}
	assert.False(t, Known("selfDestruct"))
}

func TestOptionDefaults(t *testing.T) {
	tests := []struct {
		command string
		options string
		apiCall string
		want    any
	}{
		{Alert, "", "alert", vehicleapi.AlertRequest{Action: []string{"Flash"}, Duration: 1, Override: []string{}}},
		{Alert, `{"action":["Honk"],"duration":3}`, "alert", vehicleapi.AlertRequest{Action: []string{"Honk"}, Duration: 3, Override: []string{}}},
		{LockDoor, "", "lockDoor", vehicleapi.DelayRequest{}},
		{UnlockDoor, `{"delay":10}`, "unlockDoor", vehicleapi.DelayRequest{Delay: 10}},
		{ChargeOverride, "", "chargeOverride", vehicleapi.ChargeOverrideRequest{Mode: "CHARGE_NOW"}},
		{CancelChargeOverride, "null", "chargeOverride", vehicleapi.ChargeOverrideRequest{Mode: "CANCEL_OVERRIDE"}},
		{SetChargingProfile, `{"chargeMode":"RATE_BASED","rateType":"OFFPEAK"}`, "setChargingProfile",
			vehicleapi.ChargingProfileRequest{ChargeMode: "RATE_BASED", RateType: "OFFPEAK"}},
		{Diagnostics, "", "diagnostics", vehicleapi.DiagnosticsRequest{DiagnosticItem: testVehicle.SupportedDiagnostics}},
		{Diagnostics, `{"diagnosticItem":["ODOMETER","TIRE PRESSURE"]}`, "diagnostics",
			vehicleapi.DiagnosticsRequest{DiagnosticItem: []string{"ODOMETER", "TIRE PRESSURE"}}},
		{Diagnostics, `{"diagnosticItem":["ENGINE RPM"]}`, "diagnostics",
			vehicleapi.DiagnosticsRequest{DiagnosticItem: []string{"ENGINE RPM"}}},
		{Diagnostics, `{"diagnosticItem":[]}`, "diagnostics", vehicleapi.DiagnosticsRequest{DiagnosticItem: testVehicle.SupportedDiagnostics}},
	}
	for _, tt := range tests {
		t.Run(tt.command+tt.options, func(t *testing.T) {
			api := &fakeAPI{}
			d := NewDispatcher(api, testVehicle, nil, nil, nil)
			res := d.Execute(context.Background(), Request{Command: tt.command, Options: json.RawMessage(tt.options)})
			_, failed := res.(Failure)
			require.False(t, failed, "%v", res)
			got := api.last()
			assert.Equal(t, tt.apiCall, got.Name)
			assert.Equal(t, tt.want, got.Opts)
		})
	}
}

func TestExecuteResults(t *testing.T) {
	d := NewDispatcher(&fakeAPI{}, testVehicle, nil, nil, nil)
	ctx := context.Background()

	loc, ok := d.Execute(ctx, Request{Command: GetLocation}).(LocationResult)
	require.True(t, ok)
	assert.InDelta(t, 42.331427, loc.Lat, 1e-9)
	assert.InDelta(t, -83.045754, loc.Lon, 1e-9)

	diags, ok := d.Execute(ctx, Request{Command: Diagnostics}).(DiagnosticsResult)
	require.True(t, ok)
	assert.Len(t, diags.Diagnostics, 11)
	assert.Equal(t, metrics.TriggerCommand, diags.Trigger)

	prof, ok := d.Execute(ctx, Request{Command: GetChargingProfile}).(GenericResult)
	require.True(t, ok)
	assert.JSONEq(t, `{"chargingProfile":{"chargeMode":"IMMEDIATE","rateType":"MIDPEAK"}}`, string(prof.Body))

	vehicles, ok := d.Execute(ctx, Request{Command: GetAccountVehicles}).(GenericResult)
	require.True(t, ok)
	assert.Contains(t, string(vehicles.Body), "foobarVIN")

	lock, ok := d.Execute(ctx, Request{Command: LockDoor}).(GenericResult)
	require.True(t, ok)
	assert.Empty(t, lock.Body)
}

func TestExecuteTimerTrigger(t *testing.T) {
	d := NewDispatcher(&fakeAPI{}, testVehicle, nil, nil, nil)
	res, ok := d.Execute(context.Background(), Request{Command: Diagnostics, Trigger: metrics.TriggerTimer}).(DiagnosticsResult)
	require.True(t, ok)
	assert.Equal(t, metrics.TriggerTimer, res.Trigger)
}

func TestExecuteFailures(t *testing.T) {
	boom := errors.New("boom")
	sink := &commandSink{}
	d := NewDispatcher(&fakeAPI{err: boom}, testVehicle, nil, sink, nil)

	f, ok := d.Execute(context.Background(), Request{Command: StartVehicle}).(Failure)
	require.True(t, ok)
	assert.ErrorIs(t, f.Err, boom)
	assert.Equal(t, StartVehicle, f.CommandName())

	f, ok = d.Execute(context.Background(), Request{Command: "nope"}).(Failure)
	require.True(t, ok)
	assert.ErrorIs(t, f.Err, ErrUnknownCommand)

	f, ok = NewDispatcher(&fakeAPI{}, testVehicle, nil, nil, nil).
		Execute(context.Background(), Request{Command: LockDoor, Options: json.RawMessage(`{"delay":"soon"}`)}).(Failure)
	require.True(t, ok)
	assert.Contains(t, f.Err.Error(), "lockDoor options")

	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].Success)
	assert.Equal(t, StartVehicle, sink.events[0].Command)
	assert.Equal(t, "XXX", sink.events[0].VIN)
}

func TestDiagnosticsWithoutSupportedItems(t *testing.T) {
	api := &fakeAPI{}
	bare := model.Vehicle{Make: "Chevrolet", Model: "Bolt EV", Year: "2020", VIN: "YYY"}
	d := NewDispatcher(api, bare, nil, nil, nil)

	f, ok := d.Execute(context.Background(), Request{Command: Diagnostics, Trigger: metrics.TriggerTimer}).(Failure)
	require.True(t, ok)
	assert.ErrorIs(t, f.Err, ErrNoDiagnostics)
	assert.Equal(t, metrics.TriggerTimer, f.Trigger)
	assert.Empty(t, api.calls)

	res := d.Execute(context.Background(), Request{Command: Diagnostics, Options: json.RawMessage(`{"diagnosticItem":["ODOMETER"]}`)})
	_, ok = res.(DiagnosticsResult)
	require.True(t, ok, "%v", res)
	assert.Equal(t, vehicleapi.DiagnosticsRequest{DiagnosticItem: []string{"ODOMETER"}}, api.last().Opts)
}

func TestDispatchAfterWait(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api, testVehicle, nil, nil, nil)
	require.NoError(t, d.Dispatch(context.Background(), Request{Command: StartVehicle}))
	d.Wait()

	assert.ErrorIs(t, d.Dispatch(context.Background(), Request{Command: StartVehicle}), ErrDispatcherClosed)
	d.HandleMessage(context.Background(), []byte(`{"command":"cancelAlert"}`))
	d.Wait()
	require.Len(t, api.calls, 1)
	assert.Equal(t, "start", api.calls[0].Name)
}

func TestDispatchAsync(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Result
	)
	h := HandlerFunc(func(_ context.Context, r Result) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, r)
	})
	d := NewDispatcher(&fakeAPI{}, testVehicle, h, nil, nil)

	require.NoError(t, d.Dispatch(context.Background(), Request{Command: StartVehicle}))
	require.NoError(t, d.Dispatch(context.Background(), Request{Command: GetLocation}))
	assert.ErrorIs(t, d.Dispatch(context.Background(), Request{Command: "nope"}), ErrUnknownCommand)
	d.Wait()

	assert.Len(t, got, 2)
}

func TestHandleMessageDropsInvalid(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api, testVehicle, nil, nil, nil)
	d.HandleMessage(context.Background(), []byte(`{bad`))
	d.HandleMessage(context.Background(), []byte(`{"command":"selfDestruct"}`))
	d.HandleMessage(context.Background(), []byte(`{"command":"cancelAlert"}`))
	d.Wait()
	require.Len(t, api.calls, 1)
	assert.Equal(t, "cancelAlert", api.calls[0].Name)
}
