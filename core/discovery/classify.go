package discovery

// EntityType is the Home Assistant component an entity is published as.
type EntityType string

const (
	Sensor        EntityType = "sensor"
	BinarySensor  EntityType = "binary_sensor"
	DeviceTracker EntityType = "device_tracker"
)

// LocationName is the synthetic diagnostic name used for vehicle location.
const LocationName = "getLocation"

var binarySensors = map[string]struct{}{
	"EV CHARGE STATE":           {},
	"EV PLUG STATE":             {},
	"PRIORITY CHARGE INDICATOR": {},
	"PRIORITY CHARGE STATUS":    {},
}

// SensorType classifies a diagnostic or element name.
func SensorType(name string) EntityType {
	if _, ok := binarySensors[name]; ok {
		return BinarySensor
	}
	if name == LocationName {
		return DeviceTracker
	}
	return Sensor
}
