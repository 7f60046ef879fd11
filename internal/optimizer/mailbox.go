package optimizer

import (
	"sync"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// Slot is the pending-request slot of a Mailbox. It is only valid inside Mailbox.Locked.
type Slot struct {
	req    core.Request
	posted bool
}

// Pending returns the pending request, if any.
func (s *Slot) Pending() (core.Request, bool) {
	return s.req, s.req.Event != core.EventNone
}

// Post overwrites the pending request. The consumer is woken when Locked returns.
func (s *Slot) Post(req core.Request) {
	s.req = req
	s.posted = true
}

// Mailbox holds at most one pending request.
type Mailbox struct {
	mu   sync.Mutex
	slot Slot
	wake chan struct{}
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Locked runs fn with the mailbox lock held. fn must not block.
func (m *Mailbox) Locked(fn func(*Slot)) {
	m.mu.Lock()
	m.slot.posted = false
	fn(&m.slot)
	posted := m.slot.posted
	m.mu.Unlock()

	if posted {
		m.notify()
	}
}

// Post overwrites the pending request and wakes the consumer.
func (m *Mailbox) Post(req core.Request) {
	m.Locked(func(s *Slot) { s.Post(req) })
}

// Take removes and returns the pending request.
func (m *Mailbox) Take() (core.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.slot.Pending()
	m.slot.req = core.Request{}
	return req, ok
}

// Wake receives once after one or more posts.
func (m *Mailbox) Wake() <-chan struct{} {
	return m.wake
}

func (m *Mailbox) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
