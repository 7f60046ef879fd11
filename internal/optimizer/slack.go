package optimizer

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// SlackTimer is a one-shot timer that posts EventSlackExpired on expiry.
type SlackTimer struct {
	clock   clock.WithDelayedExecution
	mailbox *Mailbox

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64

	// onExpire, if set, is called after an expiry was posted.
	onExpire func()
}

// NewSlackTimer creates a disarmed SlackTimer posting to mb.
func NewSlackTimer(clk clock.WithDelayedExecution, mb *Mailbox) *SlackTimer {
	return &SlackTimer{clock: clk, mailbox: mb}
}

// Arm cancels any pending expiry and arms the timer for d. d <= 0 only cancels.
func (s *SlackTimer) Arm(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if d <= 0 {
		return
	}
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.expire(gen) })
}

// Cancel disarms the timer. An expiry callback that already started becomes a no-op.
func (s *SlackTimer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Armed reports whether an expiry is pending.
func (s *SlackTimer) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *SlackTimer) stopLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SlackTimer) expire(gen uint64) {
	fired := false
	s.mailbox.Locked(func(slot *Slot) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			return
		}
		s.timer = nil
		if req, ok := slot.Pending(); ok && req.Event == core.EventRunQueueUpdate {
			return
		}
		slot.Post(core.Request{Event: core.EventSlackExpired})
		fired = true
	})
	if fired && s.onExpire != nil {
		s.onExpire()
	}
}
