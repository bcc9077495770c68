package metrics

import (
	"errors"
	"testing"

	coremetrics "github.com/kilianp07/vehicle2mqtt/core/metrics"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordPublish(coremetrics.PublishEvent) error {
	r.count++
	return r.err
}

func (r *recordSink) RecordCycle(coremetrics.CycleEvent) error {
	r.count++
	return nil
}

type publishOnly struct{ count int }

func (p *publishOnly) RecordPublish(coremetrics.PublishEvent) error {
	p.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordPublish(coremetrics.PublishEvent{}); err != nil {
		t.Fatalf("record publish: %v", err)
	}
	if err := m.RecordCycle(coremetrics.CycleEvent{}); err != nil {
		t.Fatalf("record cycle: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("events not forwarded")
	}
}

func TestMultiSinkOptionalRecorders(t *testing.T) {
	p := &publishOnly{}
	m := NewMultiSink(p)
	if err := m.RecordCommand(coremetrics.CommandEvent{}); err != nil {
		t.Fatalf("record command: %v", err)
	}
	if err := m.RecordTelemetry(nil); err != nil {
		t.Fatalf("record telemetry: %v", err)
	}
	if p.count != 0 {
		t.Fatalf("unexpected forward")
	}
}

func TestMultiSinkKeepsGoingOnError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	err := NewMultiSink(s1, s2).RecordPublish(coremetrics.PublishEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s2.count != 1 {
		t.Fatalf("second sink skipped")
	}
}
