package discovery

// Device groups every entity of a vehicle under one Home Assistant device.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Name         string   `json:"name"`
}

// ConfigPayload is a discovery message.
type ConfigPayload struct {
	Name                   string `json:"name"`
	Device                 Device `json:"device"`
	AvailabilityTopic      string `json:"availability_topic"`
	PayloadAvailable       string `json:"payload_available"`
	PayloadNotAvailable    string `json:"payload_not_available"`
	StateTopic             string `json:"state_topic"`
	ValueTemplate          string `json:"value_template"`
	UniqueID               string `json:"unique_id"`
	DeviceClass            string `json:"device_class,omitempty"`
	UnitOfMeasurement      string `json:"unit_of_measurement,omitempty"`
	PayloadOn              *bool  `json:"payload_on,omitempty"`
	PayloadOff             *bool  `json:"payload_off,omitempty"`
	JSONAttributesTopic    string `json:"json_attributes_topic,omitempty"`
	JSONAttributesTemplate string `json:"json_attributes_template,omitempty"`
}

// LocationState is the device_tracker state payload.
type LocationState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Availability payloads.
const (
	PayloadAvailable    = "true"
	PayloadNotAvailable = "false"
)
