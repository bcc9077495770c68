// Package infra contains the technical adapters of the bridge: the Paho MQTT
// client, the HTTP vehicle API client, zerolog logging, metrics exporters and
// Sentry monitoring. These packages depend only on the interfaces defined in
// the core packages.
package infra
