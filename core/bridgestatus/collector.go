package bridgestatus

import (
	"context"

	"github.com/kilianp07/vehicle2mqtt/core/metrics"
	"github.com/kilianp07/vehicle2mqtt/core/publish"
	"github.com/kilianp07/vehicle2mqtt/internal/eventbus"
)

// Event is one bridge activity update. Exactly one of Cycle and Command is
// set.
type Event struct {
	Cycle      *metrics.CycleEvent
	Command    *metrics.CommandEvent
	States     map[string]map[string]any
	Configured int
}

// Feed turns bridge activity into bus events. It is a metrics sink so the
// dispatcher reports commands into it like into any other sink.
type Feed struct {
	Bus        *eventbus.Bus[Event]
	Configured func() int
}

func (Feed) RecordPublish(metrics.PublishEvent) error { return nil }

func (f Feed) RecordCommand(ev metrics.CommandEvent) error {
	f.Bus.Publish(Event{Command: &ev})
	return nil
}

// ObserveCycle publishes a finished diagnostics cycle.
func (f Feed) ObserveCycle(ev metrics.CycleEvent, res publish.CycleResult) {
	e := Event{Cycle: &ev, States: res.States}
	if f.Configured != nil {
		e.Configured = f.Configured()
	}
	f.Bus.Publish(e)
}

// StartCollector applies bus events to store until ctx is canceled or the
// bus is closed.
func StartCollector(ctx context.Context, bus *eventbus.Bus[Event], store Store) <-chan struct{} {
	return eventbus.Consume(ctx, bus, func(e Event) {
		switch {
		case e.Cycle != nil:
			store.RecordCycle(e.Cycle.VIN, Cycle{
				Trigger:     string(e.Cycle.Trigger),
				Success:     e.Cycle.Success,
				Diagnostics: e.Cycle.Diagnostics,
				NewConfigs:  e.Cycle.NewConfigs,
				DurationMS:  e.Cycle.Duration.Milliseconds(),
				Timestamp:   e.Cycle.Time,
			}, e.States, e.Configured)
		case e.Command != nil:
			store.RecordCommand(e.Command.VIN, Command{
				Name:      e.Command.Command,
				Success:   e.Command.Success,
				Timestamp: e.Command.Time,
			})
		}
	})
}
