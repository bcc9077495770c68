package mqtt

import "context"

// MessageHandler receives an inbound message.
type MessageHandler func(topic string, payload []byte)

// Client is the broker connection used by the bridge. Publish matches
// publish.Bus.
type Client interface {
	// Publish sends payload to topic, retained when retain is set. It
	// returns once the broker acknowledged the message or ctx is done.
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error

	// Subscribe registers handler for topic. Subscriptions survive
	// reconnects.
	Subscribe(topic string, handler MessageHandler) error

	// Disconnect closes the connection.
	Disconnect()
}
