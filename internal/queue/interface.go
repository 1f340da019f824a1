package queue

import (
	"context"
)

// MessageInterface defines the interface for delivered events
// This enables better testability by allowing mock implementations
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetEvent() *ChangeEvent
}

// EventBus broadcasts change events to every subscribed instance
type EventBus interface {
	// Publish broadcasts an event to all subscribers, including the publisher
	Publish(ctx context.Context, event *ChangeEvent) error

	// Consume returns a channel of events delivered to this instance
	// The caller is responsible for acknowledging each message
	// Returns channels that will be closed when the context is cancelled or an error occurs
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the bus connection
	Close() error

	// HealthCheck verifies the bus connection is healthy
	HealthCheck(ctx context.Context) error
}

var (
	_ EventBus         = (*RabbitMQBus)(nil)
	_ EventBus         = (*NopBus)(nil)
	_ MessageInterface = (*Message)(nil)
)
