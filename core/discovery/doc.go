// Package discovery maps vehicle diagnostics onto Home Assistant MQTT
// discovery topics and payloads.
//
// Topics follow <prefix>/<entity type>/<vin>/<snake name>/<config|state>.
// Each diagnostic element gets its own config topic while all elements of a
// diagnostic group share the group's state topic; the element value is picked
// out of the state JSON by the value template.
//
// The Cache tracks which config topics have been announced so discovery
// payloads are published once per process lifetime.
package discovery
