package notify

import (
	"context"
	"sync"
)

// Mock is a Channel that records sends instead of delivering them.
// Used by tests and wired nowhere else.
type Mock struct {
	mu     sync.Mutex
	Bodies []string
	Err    error // returned from Send when set
}

// Name implements Channel.
func (*Mock) Name() string { return "mock" }

// Send implements Channel.
func (m *Mock) Send(_ context.Context, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Bodies = append(m.Bodies, body)
	return nil
}

// Sent returns how many sends succeeded.
func (m *Mock) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Bodies)
}
