package discovery

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/vehicle2mqtt/core/diagnostic"
	"github.com/kilianp07/vehicle2mqtt/core/model"
)

// DefaultPrefix is the Home Assistant discovery prefix.
const DefaultPrefix = "homeassistant"

const locationFriendlyName = "Location"

// Mapper builds topics and payloads for one vehicle.
type Mapper struct {
	prefix  string
	vehicle model.Vehicle
}

// NewMapper returns a Mapper publishing under prefix. An empty prefix falls
// back to DefaultPrefix.
func NewMapper(prefix string, v model.Vehicle) *Mapper {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Mapper{prefix: prefix, vehicle: v}
}

// Prefix returns the discovery prefix.
func (m *Mapper) Prefix() string { return m.prefix }

// Vehicle returns the vehicle the mapper publishes for.
func (m *Mapper) Vehicle() model.Vehicle { return m.vehicle }

// AvailabilityTopic carries the bridge liveness.
func (m *Mapper) AvailabilityTopic() string {
	return fmt.Sprintf("%s/%s/available", m.prefix, m.vehicle.VIN)
}

// DiagnosticsAvailabilityTopic reports whether the last diagnostics request
// succeeded.
func (m *Mapper) DiagnosticsAvailabilityTopic() string {
	return fmt.Sprintf("%s/%s/diagsavailable", m.prefix, m.vehicle.VIN)
}

// CommandTopic receives inbound commands.
func (m *Mapper) CommandTopic() string {
	return fmt.Sprintf("%s/%s/command", m.prefix, m.vehicle.VIN)
}

// CommandResultTopic receives the outcome of a command.
func (m *Mapper) CommandResultTopic(command string) string {
	return fmt.Sprintf("%s/%s/%s/state", m.prefix, m.vehicle.VIN, ConvertName(command))
}

// BaseTopic returns <prefix>/<type>/<vin>.
func (m *Mapper) BaseTopic(t EntityType) string {
	return fmt.Sprintf("%s/%s/%s", m.prefix, t, m.vehicle.VIN)
}

// ConfigTopic returns the discovery topic for a diagnostic or element name.
func (m *Mapper) ConfigTopic(name string) string {
	return fmt.Sprintf("%s/%s/config", m.BaseTopic(SensorType(name)), ConvertName(name))
}

// StateTopic returns the state topic for a diagnostic or element name.
func (m *Mapper) StateTopic(name string) string {
	return fmt.Sprintf("%s/%s/state", m.BaseTopic(SensorType(name)), ConvertName(name))
}

func (m *Mapper) device() Device {
	v := m.vehicle
	return Device{
		Identifiers:  []string{v.VIN},
		Manufacturer: v.Make,
		Model:        v.Year,
		Name:         v.String(),
	}
}

func (m *Mapper) basePayload(diagName, elemName, friendly string) ConfigPayload {
	return ConfigPayload{
		Name:                friendly,
		Device:              m.device(),
		AvailabilityTopic:   m.AvailabilityTopic(),
		PayloadAvailable:    PayloadAvailable,
		PayloadNotAvailable: PayloadNotAvailable,
		StateTopic:          m.StateTopic(diagName),
		ValueTemplate:       fmt.Sprintf("{{ value_json.%s }}", ConvertName(elemName)),
		UniqueID:            UniqueID(m.vehicle.VIN, elemName),
	}
}

// ConfigPayload builds the discovery payload of element e belonging to d.
func (m *Mapper) ConfigPayload(d diagnostic.Diagnostic, e diagnostic.Element) ConfigPayload {
	mapping := entityMappings[e.Name]
	friendly := mapping.friendlyName
	if friendly == "" {
		friendly = ConvertFriendlyName(e.Name)
	}

	switch SensorType(e.Name) {
	case DeviceTracker:
		p := m.basePayload(d.Name, e.Name, locationFriendlyName)
		p.JSONAttributesTopic = p.StateTopic
		return p
	case BinarySensor:
		on, off := true, false
		p := m.basePayload(d.Name, e.Name, friendly)
		p.DeviceClass = mapping.deviceClass
		p.PayloadOn, p.PayloadOff = &on, &off
		return p
	default:
		p := m.basePayload(d.Name, e.Name, friendly)
		p.DeviceClass = mapping.deviceClass
		p.UnitOfMeasurement = e.Unit()
		if mapping.attrTemplate != "" {
			p.JSONAttributesTopic = p.StateTopic
			p.JSONAttributesTemplate = mapping.attrTemplate
		}
		return p
	}
}

// LocationConfigPayload builds the device_tracker discovery payload.
func (m *Mapper) LocationConfigPayload() ConfigPayload {
	loc := diagnostic.Diagnostic{Name: LocationName}
	return m.ConfigPayload(loc, diagnostic.Element{Name: LocationName})
}

// StatePayload builds the state JSON of a diagnostic, one field per element.
func (m *Mapper) StatePayload(d diagnostic.Diagnostic) map[string]any {
	state := make(map[string]any, len(d.Elements))
	for _, e := range d.Elements {
		state[ConvertName(e.Name)] = stateValue(e)
	}
	return state
}

// LocationStatePayload builds the device_tracker state.
func (m *Mapper) LocationStatePayload(lat, lon float64) LocationState {
	return LocationState{Latitude: lat, Longitude: lon}
}

func stateValue(e diagnostic.Element) any {
	v := e.Value()
	switch e.Name {
	case "EV PLUG STATE":
		return v == "plugged"
	case "EV CHARGE STATE":
		return v == "charging"
	case "PRIORITY CHARGE INDICATOR":
		return v == "TRUE"
	case "PRIORITY CHARGE STATUS":
		return v == "ACTIVE"
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return v
	}
	return n
}
