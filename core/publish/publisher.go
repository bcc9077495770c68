// Package publish implements the discovery/state publication protocol:
// discovery payloads are announced once per config topic for the lifetime
// of the process while state payloads are republished on every cycle.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/vehicle2mqtt/core/diagnostic"
	"github.com/kilianp07/vehicle2mqtt/core/discovery"
	"github.com/kilianp07/vehicle2mqtt/core/logger"
	"github.com/kilianp07/vehicle2mqtt/core/metrics"
)

// Bus is the message transport. All bridge publishes are retained.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
}

// CycleResult summarizes one diagnostics publication.
type CycleResult struct {
	Diagnostics int
	NewConfigs  int
	States      map[string]map[string]any
}

// Publisher publishes discovery and state payloads for one vehicle.
type Publisher struct {
	bus    Bus
	mapper *discovery.Mapper
	cache  *discovery.Cache
	sink   metrics.MetricsSink
	log    logger.Logger
	now    func() time.Time
}

// New returns a Publisher. A nil sink disables metrics and a nil cache
// starts empty.
func New(bus Bus, mapper *discovery.Mapper, cache *discovery.Cache, sink metrics.MetricsSink, log logger.Logger) *Publisher {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if cache == nil {
		cache = discovery.NewCache()
	}
	return &Publisher{bus: bus, mapper: mapper, cache: cache, sink: sink, log: logger.OrNop(log), now: time.Now}
}

// Mapper returns the topic/payload mapper.
func (p *Publisher) Mapper() *discovery.Mapper { return p.mapper }

// Cache returns the discovery cache.
func (p *Publisher) Cache() *discovery.Cache { return p.cache }

// PublishDiagnostics registers the discovery payload of every element, then
// announces the topics not configured yet and publishes the state of every
// diagnostic with elements. Publish failures do not stop the cycle; they are
// joined in the returned error and unannounced topics are retried on the
// next call.
func (p *Publisher) PublishDiagnostics(ctx context.Context, diags []diagnostic.Diagnostic) (CycleResult, error) {
	type state struct {
		topic   string
		payload map[string]any
	}
	var (
		states []state
		points []metrics.TelemetryPoint
		res    = CycleResult{States: map[string]map[string]any{}}
		now    = p.now()
	)
	for _, d := range diags {
		if !d.HasElements() {
			continue
		}
		res.Diagnostics++
		for _, e := range d.Elements {
			p.cache.Add(p.mapper.ConfigTopic(e.Name), p.mapper.ConfigPayload(d, e))
			if v, err := strconv.ParseFloat(strings.TrimSpace(e.Value()), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
				points = append(points, metrics.TelemetryPoint{
					VIN:        p.mapper.Vehicle().VIN,
					Diagnostic: d.Name,
					Element:    e.Name,
					Unit:       e.Unit(),
					Value:      v,
					Time:       now,
				})
			}
		}
		st := state{topic: p.mapper.StateTopic(d.Name), payload: p.mapper.StatePayload(d)}
		states = append(states, st)
		res.States[st.topic] = st.payload
	}

	n, err := p.publishPendingConfigs(ctx)
	res.NewConfigs = n
	errs := []error{err}
	for _, s := range states {
		errs = append(errs, p.publishJSON(ctx, s.topic, s.payload, metrics.KindState))
	}
	if rec, ok := p.sink.(metrics.TelemetryRecorder); ok && len(points) > 0 {
		if err := rec.RecordTelemetry(points); err != nil {
			p.log.Warnf("record telemetry: %v", err)
		}
	}
	return res, errors.Join(errs...)
}

// PublishLocation announces the device tracker once and publishes the
// position.
func (p *Publisher) PublishLocation(ctx context.Context, lat, lon float64) error {
	p.cache.Add(p.mapper.ConfigTopic(discovery.LocationName), p.mapper.LocationConfigPayload())
	_, err := p.publishPendingConfigs(ctx)
	return errors.Join(err, p.publishJSON(ctx,
		p.mapper.StateTopic(discovery.LocationName),
		p.mapper.LocationStatePayload(lat, lon),
		metrics.KindState))
}

// PublishAvailable sets the bridge liveness topic.
func (p *Publisher) PublishAvailable(ctx context.Context, available bool) error {
	return p.publishRaw(ctx, p.mapper.AvailabilityTopic(), []byte(strconv.FormatBool(available)), metrics.KindAvailability)
}

// PublishDiagnosticsAvailable sets the diagnostics liveness topic.
func (p *Publisher) PublishDiagnosticsAvailable(ctx context.Context, available bool) error {
	return p.publishRaw(ctx, p.mapper.DiagnosticsAvailabilityTopic(), []byte(strconv.FormatBool(available)), metrics.KindAvailability)
}

// PublishCommandResult publishes payload on the result topic of command.
func (p *Publisher) PublishCommandResult(ctx context.Context, command string, payload any) error {
	return p.publishJSON(ctx, p.mapper.CommandResultTopic(command), payload, metrics.KindCommand)
}

func (p *Publisher) publishPendingConfigs(ctx context.Context) (int, error) {
	var (
		errs []error
		n    int
	)
	for _, e := range p.cache.Claim() {
		if err := p.publishJSON(ctx, e.Topic, e.Payload, metrics.KindConfig); err != nil {
			p.cache.Release(e.Topic)
			errs = append(errs, err)
			continue
		}
		if p.cache.Confirm(e.Topic) {
			n++
		}
	}
	return n, errors.Join(errs...)
}

func (p *Publisher) publishJSON(ctx context.Context, topic string, v any, kind metrics.PublishKind) error {
	payload, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return p.publishRaw(ctx, topic, payload, kind)
}

func (p *Publisher) publishRaw(ctx context.Context, topic string, payload []byte, kind metrics.PublishKind) error {
	p.log.Debugf("%s %s", topic, payload)
	err := p.bus.Publish(ctx, topic, payload, true)
	if rerr := p.sink.RecordPublish(metrics.PublishEvent{Topic: topic, Kind: kind, Success: err == nil, Time: p.now()}); rerr != nil {
		p.log.Warnf("record publish: %v", rerr)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// encode marshals v without HTML escaping so templates stay readable.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
