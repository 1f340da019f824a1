package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchangeName is the fanout exchange change events are published on
	DefaultExchangeName = "plan_changes"
)

// RabbitMQBus implements EventBus over a RabbitMQ fanout exchange. Each bus
// consumes from its own exclusive, server-named queue, so every instance sees
// every event.
type RabbitMQBus struct {
	conn         *amqp.Connection
	exchangeName string

	mu      sync.Mutex // guards channel; amqp channels are not safe for concurrent publishes
	channel *amqp.Channel
}

// NewRabbitMQBus connects to RabbitMQ and declares the exchange
func NewRabbitMQBus(amqpURL string) (*RabbitMQBus, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	bus := &RabbitMQBus{
		conn:         conn,
		channel:      ch,
		exchangeName: DefaultExchangeName,
	}

	if err := bus.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup exchange: %w", err)
	}

	return bus, nil
}

// setup declares the fanout exchange
func (b *RabbitMQBus) setup() error {
	err := b.channel.ExchangeDeclare(
		b.exchangeName,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// Publish broadcasts an event on the exchange
func (b *RabbitMQBus) Publish(ctx context.Context, event *ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Transient, // cache invalidation does not survive a broker restart
		MessageId:    event.ID.String(),
		Timestamp:    event.CreatedAt,
		Type:         string(event.Type),
	}

	// Calculate TTL from NotAfter if set
	if event.NotAfter != nil {
		ttl := time.Until(*event.NotAfter)
		if ttl > 0 {
			publishing.Expiration = fmt.Sprintf("%d", ttl.Milliseconds())
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	err = b.channel.PublishWithContext(
		ctx,
		b.exchangeName,
		"",    // routing key, ignored by fanout
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Consume declares an exclusive queue bound to the exchange and delivers its
// events until ctx is cancelled or the connection drops
func (b *RabbitMQBus) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	// Create a dedicated channel for consuming
	consumeCh, err := b.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	q, err := consumeCh.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := consumeCh.QueueBind(q.Name, "", b.exchangeName, false, nil); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to bind queue to exchange: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.Name,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack (false = manual ack required)
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	if prefetchCount < 1 {
		prefetchCount = 1
	}
	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() {
			// channel may already be closed
			_ = consumeCh.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- errors.New("delivery channel closed")
					return
				}

				msg, err := decodeDelivery(delivery.Body, delivery.DeliveryTag, consumeCh)
				if err != nil {
					_ = delivery.Nack(false, false)
					select {
					case errChan <- err:
					default:
					}
					continue
				}
				if msg.Event.IsExpired() {
					_ = delivery.Ack(false)
					continue
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, false)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

func decodeDelivery(body []byte, tag uint64, ack Acknowledger) (*Message, error) {
	var event ChangeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type != EventTypePlanChanged {
		return nil, fmt.Errorf("unexpected event type %q", event.Type)
	}
	return &Message{Event: &event, DeliveryTag: tag, Channel: ack}, nil
}

// HealthCheck verifies the connection and publish channel are open
func (b *RabbitMQBus) HealthCheck(ctx context.Context) error {
	if b.conn == nil || b.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel == nil || b.channel.IsClosed() {
		return errors.New("rabbitmq channel is closed")
	}
	return nil
}

// Close closes the bus connection
func (b *RabbitMQBus) Close() error {
	var err error
	b.mu.Lock()
	if b.channel != nil {
		err = b.channel.Close()
	}
	b.mu.Unlock()
	if b.conn != nil {
		if closeErr := b.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
