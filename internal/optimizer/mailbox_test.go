package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

func pendingWakes(mb *Mailbox) int {
	n := 0
	for {
		select {
		case <-mb.Wake():
			n++
		default:
			return n
		}
	}
}

func TestMailboxLastWriterWins(t *testing.T) {
	mb := NewMailbox()

	mb.Post(core.Request{Event: core.EventRunQueueUpdate, Depth: 5})
	mb.Post(core.Request{Event: core.EventRunQueueUpdate, Depth: 30})

	assert.Equal(t, 1, pendingWakes(mb), "multiple posts coalesce into one wake")

	req, ok := mb.Take()
	assert.True(t, ok)
	assert.Equal(t, core.Request{Event: core.EventRunQueueUpdate, Depth: 30}, req)

	_, ok = mb.Take()
	assert.False(t, ok, "take clears the slot")
}

func TestMailboxLockedWithoutPost(t *testing.T) {
	mb := NewMailbox()

	mb.Locked(func(s *Slot) {
		_, ok := s.Pending()
		assert.False(t, ok)
	})
	assert.Zero(t, pendingWakes(mb))

	mb.Locked(func(s *Slot) { s.Post(core.Request{Event: core.EventSlackExpired}) })
	assert.Equal(t, 1, pendingWakes(mb))

	mb.Locked(func(s *Slot) {
		req, ok := s.Pending()
		assert.True(t, ok)
		assert.Equal(t, core.EventSlackExpired, req.Event)
	})
	assert.Zero(t, pendingWakes(mb), "reading the slot does not wake the consumer")
}
