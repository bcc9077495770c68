// Package app wires the bridge: vehicle API, MQTT transport, publisher,
// command dispatcher and the refresh loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/kilianp07/vehicle2mqtt/api/status"
	"github.com/kilianp07/vehicle2mqtt/config"
	"github.com/kilianp07/vehicle2mqtt/core/bridgestatus"
	"github.com/kilianp07/vehicle2mqtt/core/commands"
	"github.com/kilianp07/vehicle2mqtt/core/discovery"
	coremetrics "github.com/kilianp07/vehicle2mqtt/core/metrics"
	"github.com/kilianp07/vehicle2mqtt/core/model"
	coremon "github.com/kilianp07/vehicle2mqtt/core/monitoring"
	coremqtt "github.com/kilianp07/vehicle2mqtt/core/mqtt"
	"github.com/kilianp07/vehicle2mqtt/core/publish"
	"github.com/kilianp07/vehicle2mqtt/core/vehicleapi"
	"github.com/kilianp07/vehicle2mqtt/infra/logger"
	"github.com/kilianp07/vehicle2mqtt/infra/metrics"
	"github.com/kilianp07/vehicle2mqtt/infra/monitoring"
	"github.com/kilianp07/vehicle2mqtt/infra/mqtt"
	infraapi "github.com/kilianp07/vehicle2mqtt/infra/vehicleapi"
	"github.com/kilianp07/vehicle2mqtt/internal/eventbus"
)

const shutdownTimeout = 5 * time.Second

var (
	configureLogger = logger.Configure
	newVehicleAPI    = func(cfg infraapi.Config) (vehicleapi.API, error) { return infraapi.New(cfg) }
	newMQTTClient   = func(cfg mqtt.Config) (coremqtt.Client, error) { return mqtt.NewPahoClient(cfg) }
)

// Service bridges one vehicle to the MQTT broker.
type Service struct {
	cfg        *config.Config
	vehicle    model.Vehicle
	client     coremqtt.Client
	pub        *publish.Publisher
	router     *commands.Router
	dispatcher *commands.Dispatcher
	store      *bridgestatus.MemoryStore
	bus        *eventbus.Bus[bridgestatus.Event]
	closers    []func() error
	log        logger.Logger
}

// New creates a Service from the configuration. It resolves the vehicle
// from the account listing and connects to the broker. Resources acquired
// before a failure are released.
func New(ctx context.Context, cfg *config.Config) (_ *Service, err error) {
	closeLog, err := configureLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	s := &Service{
		cfg:     cfg,
		store:   bridgestatus.NewMemoryStore(),
		bus:     eventbus.New[bridgestatus.Event](32),
		closers: []func() error{closeLog},
		log:     logger.New("service"),
	}
	defer func() {
		if err != nil {
			if cerr := s.Close(); cerr != nil {
				s.log.Warnf("release resources: %v", cerr)
			}
		}
	}()

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	api, err := newVehicleAPI(cfg.Vehicle)
	if err != nil {
		return nil, fmt.Errorf("vehicle api: %w", err)
	}
	res, err := api.GetAccountVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("account vehicles: %w", err)
	}
	s.vehicle, err = model.Select(res.Vehicles(), cfg.Vehicle.VIN)
	if err != nil {
		return nil, err
	}
	if c, ok := api.(*infraapi.Client); ok {
		api = c.WithVIN(s.vehicle.VIN)
	}
	s.log.Infof("bridging %s (%s)", s.vehicle, s.vehicle.VIN)

	cache := discovery.NewCache()
	feed := bridgestatus.Feed{Bus: s.bus, Configured: cache.Configured}
	sink, err := s.buildSink(feed)
	if err != nil {
		return nil, err
	}

	mapper := discovery.NewMapper(cfg.Bridge.Prefix, s.vehicle)
	mqttCfg := cfg.MQTT
	if mqttCfg.LWTTopic == "" {
		mqttCfg.LWTTopic = mapper.AvailabilityTopic()
		mqttCfg.LWTPayload = "false"
		mqttCfg.LWTQoS = mqttCfg.QoS
		mqttCfg.LWTRetain = true
	}
	s.client, err = newMQTTClient(mqttCfg)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	s.pub = publish.New(s.client, mapper, cache, sink, logger.New("publisher"))
	s.router = commands.NewRouter(s.pub, sink, feed.ObserveCycle, logger.New("router"))
	s.dispatcher = commands.NewDispatcher(api, s.vehicle, s.router, sink, logger.New("dispatcher"))
	s.store.Set(bridgestatus.Status{
		VIN:           s.vehicle.VIN,
		Vehicle:       s.vehicle.String(),
		CurrentStatus: bridgestatus.StatusStarting,
	})
	return s, nil
}

// buildSink combines the configured metrics sinks with the status feed.
func (s *Service) buildSink(feed bridgestatus.Feed) (coremetrics.MetricsSink, error) {
	sinks := []coremetrics.MetricsSink{feed}
	if s.cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(s.cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if s.cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(s.cfg.Metrics)
		if is, ok := sink.(*metrics.InfluxSink); ok {
			s.closers = append(s.closers, func() error { is.Close(); return nil })
		}
		sinks = append(sinks, sink)
	}
	return metrics.NewMultiSink(sinks...), nil
}

// Vehicle returns the bridged vehicle.
func (s *Service) Vehicle() model.Vehicle { return s.vehicle }

// Status returns the status store fed by the service.
func (s *Service) Status() bridgestatus.Store { return s.store }

// Run announces availability, subscribes to the command topic and refreshes
// diagnostics until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	collected := bridgestatus.StartCollector(ctx, s.bus, s.store)
	defer func() {
		s.bus.Close()
		<-collected
	}()

	extra := status.Handlers(s.store, s.cfg.Bridge.StatusToken)
	if addr := s.cfg.Bridge.StatusAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("status listener: %w", err)
		}
		go func() {
			if err := status.Serve(ctx, ln, s.store, s.cfg.Bridge.StatusToken); err != nil {
				s.log.Errorf("status server: %v", err)
			}
		}()
		s.log.Infof("serving status on %s", ln.Addr())
		extra = nil
	}
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort, extra); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if err := s.pub.PublishAvailable(ctx, true); err != nil {
		return fmt.Errorf("announce availability: %w", err)
	}
	if s.cfg.Bridge.CommandsAllowed() {
		topic := s.pub.Mapper().CommandTopic()
		if err := s.client.Subscribe(topic, func(_ string, payload []byte) {
			if ctx.Err() != nil {
				return
			}
			s.dispatcher.HandleMessage(ctx, payload)
		}); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		s.log.Infof("listening for commands on %s", topic)
	}

	ticker := time.NewTicker(s.cfg.Bridge.Refresh())
	defer ticker.Stop()
	s.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// refresh runs one timer-triggered diagnostics cycle. Failures are published
// and logged by the router and never stop the loop.
func (s *Service) refresh(ctx context.Context) {
	defer coremon.Recover()
	req := commands.Request{Command: commands.Diagnostics, Trigger: coremetrics.TriggerTimer}
	s.router.Handle(ctx, s.dispatcher.Execute(ctx, req))
}

func (s *Service) shutdown() {
	s.dispatcher.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.pub.PublishAvailable(ctx, false); err != nil {
		s.log.Warnf("announce offline: %v", err)
	}
	s.client.Disconnect()
	coremon.Flush(shutdownTimeout)
	s.log.Infof("bridge stopped")
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}
