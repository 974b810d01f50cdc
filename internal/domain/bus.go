package domain

import (
	"context"
)

// EventBus carries side-channel events out of the scoring path. Prediction
// results are published here and consumed by the async audit worker;
// scoring never waits on subscribers.
type EventBus interface {
	// Publish sends a message to a topic. Must not block on slow consumers.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is an event envelope.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is "channel" or "nats"
	Type string

	ChannelBufferSize int

	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topics for the prediction pipeline.
const (
	TopicPredictionCreated = "fraudguard.prediction.created"
	TopicProfileUpdated    = "fraudguard.profile.updated"
	TopicStoreError        = "fraudguard.store.error"
)
