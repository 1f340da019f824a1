package queue

import (
	"context"
)

// NopBus is used when no broker is configured. Publishing succeeds without
// effect and Consume delivers nothing until ctx is cancelled.
type NopBus struct{}

// NewNopBus creates a bus that drops every event
func NewNopBus() *NopBus {
	return &NopBus{}
}

// Publish discards the event
func (NopBus) Publish(ctx context.Context, event *ChangeEvent) error {
	return nil
}

// Consume returns channels that close when ctx is done
func (NopBus) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	msgChan := make(chan *Message)
	errChan := make(chan error)
	go func() {
		<-ctx.Done()
		close(msgChan)
		close(errChan)
	}()
	return msgChan, errChan, nil
}

// Close does nothing
func (NopBus) Close() error {
	return nil
}

// HealthCheck always succeeds
func (NopBus) HealthCheck(ctx context.Context) error {
	return nil
}
