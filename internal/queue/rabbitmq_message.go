package queue

// Acknowledger settles one delivery
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
}

// Message wraps a ChangeEvent with its delivery information
type Message struct {
	Event       *ChangeEvent
	DeliveryTag uint64
	Channel     Acknowledger
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	if m.Channel == nil {
		return nil
	}
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message
func (m *Message) Nack(requeue bool) error {
	if m.Channel == nil {
		return nil
	}
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetEvent returns the delivered event
func (m *Message) GetEvent() *ChangeEvent {
	return m.Event
}
