package core

import "context"

// Starting offset policies for GroupConsumerConfig.StartingOffset.
// Non-negative values are absolute offsets.
const (
	EarliestOffset int64 = -2
	LatestOffset   int64 = -1
)

// ConnectionConfig is handed to the broker client untouched.
type ConnectionConfig struct {
	// ConnectionString is the broker bootstrap address. Plugins accept a
	// comma-separated list where the broker supports several seeds.
	ConnectionString string

	// Options holds plugin-specific settings.
	Options map[string]any
}

// GroupConsumerConfig configures a consumer-group member.
type GroupConsumerConfig struct {
	ConnectionConfig
	GroupID        string
	StartingOffset int64
}

// Message is an opaque payload.
type Message struct {
	Value []byte
}

// OutgoingMessage is a message addressed to a topic.
type OutgoingMessage struct {
	Topic   string
	Message Message
}

// DeliveryResult is the broker's acknowledgement of a sent message.
type DeliveryResult struct {
	Topic     string
	Partition int32
	Offset    int64
}

// MessageSetItem is one message of a delivered set.
type MessageSetItem struct {
	Offset  int64
	Message Message
}

// MessageSet is an ordered run of messages from a single topic partition.
type MessageSet []MessageSetItem

// OffsetCommit identifies the handled message whose offset is committed.
// Offset is the offset of that message; plugins translate it to their
// broker's convention.
type OffsetCommit struct {
	Topic     string
	Partition int32
	Offset    int64
}

// DeliveryHandler is invoked by the broker client for each delivered message set.
type DeliveryHandler func(ctx context.Context, set MessageSet, topic string, partition int32) error

// Handler processes the payload of a single message. Returning an error (or
// panicking) leaves the message uncommitted.
type Handler func(ctx context.Context, value []byte) error

// Middleware wraps a Handler to add cross-cutting behavior.
type Middleware func(Handler) Handler

// PublishRequest is the input of Publisher.Publish.
type PublishRequest struct {
	EventName string
	Buffer    []byte
	Config    ConnectionConfig
}

// SubscribeRequest is the input of Subscriber.Subscribe. EventName is both
// the topic and the consumer group.
type SubscribeRequest struct {
	EventName string
	Handler   Handler
	Config    ConnectionConfig
}
