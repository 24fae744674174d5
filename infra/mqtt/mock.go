package mqtt

import (
	"fmt"
	"sync"
)

// Message is a recorded publish.
type Message struct {
	Topic   string
	Payload string
}

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	mu         sync.Mutex
	messages   []Message
	FailTopics map[string]bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailTopics: make(map[string]bool)}
}

// Publish records the message or returns an error if configured to fail.
func (m *MockPublisher) Publish(topic, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("publish to %s failed", topic)
	}
	m.messages = append(m.messages, Message{Topic: topic, Payload: payload})
	return nil
}

// Messages returns a copy of the recorded publishes.
func (m *MockPublisher) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}
