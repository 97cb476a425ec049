package mocks

import "sync"

// MockMessageQueue is an in-memory MessageQueue. Published payloads are
// retained per subject; Deliver pushes a payload through registered
// handlers the way a broker would.
type MockMessageQueue struct {
	mu                sync.Mutex
	PublishedMessages map[string][][]byte
	Subscribers       map[string][]func([]byte) error

	PublishFunc   func(subject string, data []byte) error
	SubscribeFunc func(subject string, handler func([]byte) error) error
	CloseFunc     func() error
}

func NewMockMessageQueue() *MockMessageQueue {
	return &MockMessageQueue{
		PublishedMessages: make(map[string][][]byte),
		Subscribers:       make(map[string][]func([]byte) error),
	}
}

func (m *MockMessageQueue) Publish(subject string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(subject, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedMessages[subject] = append(m.PublishedMessages[subject], data)
	return nil
}

func (m *MockMessageQueue) Subscribe(subject string, handler func([]byte) error) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(subject, handler)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subscribers[subject] = append(m.Subscribers[subject], handler)
	return nil
}

func (m *MockMessageQueue) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// GetPublishedMessages returns all payloads published to a subject.
func (m *MockMessageQueue) GetPublishedMessages(subject string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([][]byte, len(m.PublishedMessages[subject]))
	copy(msgs, m.PublishedMessages[subject])
	return msgs
}

// Deliver invokes every handler subscribed to the subject.
func (m *MockMessageQueue) Deliver(subject string, data []byte) error {
	m.mu.Lock()
	handlers := make([]func([]byte) error, len(m.Subscribers[subject]))
	copy(handlers, m.Subscribers[subject])
	m.mu.Unlock()

	for _, h := range handlers {
		if err := h(data); err != nil {
			return err
		}
	}
	return nil
}

// ClearMessages drops all retained payloads.
func (m *MockMessageQueue) ClearMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedMessages = make(map[string][][]byte)
}
