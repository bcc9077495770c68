// Package bridgestatus keeps the last known bridge state per vehicle for the
// status endpoint.
package bridgestatus

import (
	"sort"
	"sync"
	"time"
)

// Cycle summarizes the last diagnostics cycle.
type Cycle struct {
	Trigger     string    `json:"trigger"`
	Success     bool      `json:"success"`
	Diagnostics int       `json:"diagnostics"`
	NewConfigs  int       `json:"new_configs"`
	DurationMS  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// Command summarizes the last command.
type Command struct {
	Name      string    `json:"name"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Status captures the current known state of a vehicle.
type Status struct {
	VIN              string                    `json:"vin"`
	Vehicle          string                    `json:"vehicle,omitempty"`
	CurrentStatus    string                    `json:"current_status"`
	ConfiguredTopics int                       `json:"configured_topics"`
	LastCycle        *Cycle                    `json:"last_cycle,omitempty"`
	LastCommand      *Command                  `json:"last_command,omitempty"`
	States           map[string]map[string]any `json:"states,omitempty"`
}

// Status values.
const (
	StatusStarting    = "starting"
	StatusOnline      = "online"
	StatusDiagsFailed = "diagnostics_failed"
)

type Store interface {
	Set(Status)
	Get(vin string) (Status, bool)
	List() []Status
	RecordCycle(vin string, c Cycle, states map[string]map[string]any, configured int)
	RecordCommand(vin string, c Command)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[st.VIN] = st
	s.mu.Unlock()
}

func (s *MemoryStore) Get(vin string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[vin]
	return st, ok
}

// RecordCycle stores the outcome of a cycle. States of a failed cycle are
// ignored so the last good values stay visible.
func (s *MemoryStore) RecordCycle(vin string, c Cycle, states map[string]map[string]any, configured int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(vin)
	st.LastCycle = &c
	st.ConfiguredTopics = configured
	if c.Success {
		st.CurrentStatus = StatusOnline
	} else {
		st.CurrentStatus = StatusDiagsFailed
	}
	if len(states) > 0 {
		merged := make(map[string]map[string]any, len(st.States)+len(states))
		for k, v := range st.States {
			merged[k] = v
		}
		for k, v := range states {
			merged[k] = v
		}
		st.States = merged
	}
	s.data[vin] = st
}

func (s *MemoryStore) RecordCommand(vin string, c Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(vin)
	st.LastCommand = &c
	s.data[vin] = st
}

func (s *MemoryStore) entry(vin string) Status {
	st := s.data[vin]
	if st.VIN == "" {
		st.VIN = vin
		st.CurrentStatus = StatusStarting
	}
	return st
}

func (s *MemoryStore) List() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VIN < res[j].VIN })
	return res
}
