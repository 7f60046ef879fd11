/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package core

import (
	"fmt"
	"time"

	"k8s.io/utils/cpuset"
)

// CoreID identifies a logical CPU.
type CoreID int

// PrimaryCore is the core that must stay online at all times.
const PrimaryCore CoreID = 0

// DepthScale is the fixed-point scale of run-queue depths: a depth of 150 means 1.5 runnable tasks.
const DepthScale = 100

// Event is the kind of decision request handed to the oracle.
type Event int

// enumeration of Event
const (
	// EventNone marks an empty mailbox slot.
	EventNone Event = iota
	// EventRunQueueUpdate carries a new significant run-queue depth.
	EventRunQueueUpdate
	// EventSlackExpired asks for a re-evaluation after the slack interval ran out.
	EventSlackExpired
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventRunQueueUpdate:
		return "runq_update"
	case EventSlackExpired:
		return "slack_expired"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ParseEvent is the inverse of Event.String for the request events.
func ParseEvent(s string) (Event, error) {
	switch s {
	case "runq_update":
		return EventRunQueueUpdate, nil
	case "slack_expired":
		return EventSlackExpired, nil
	default:
		return EventNone, fmt.Errorf("unknown event %q", s)
	}
}

// Request is a pending decision request. Depth is only meaningful for EventRunQueueUpdate.
type Request struct {
	Event Event
	Depth uint32
}

// Value returns the oracle argument for the request: the depth for run-queue
// updates and zero for everything else.
func (r Request) Value() uint32 {
	if r.Event == EventRunQueueUpdate {
		return r.Depth
	}
	return 0
}

// Decision is the answer of a policy oracle.
type Decision struct {
	// Mask holds the cores that should be online.
	Mask cpuset.CPUSet
	// Slack is the quiescence interval after which a re-evaluation is forced. Zero disables it.
	Slack time.Duration
}

// TargetState is a Decision as published to the hotplug worker.
type TargetState struct {
	Mask  cpuset.CPUSet
	Slack time.Duration
	// Generation increases by one on every publication.
	Generation uint64
}

// Transition describes one completed core state change.
type Transition struct {
	Core    CoreID
	Online  bool
	Elapsed time.Duration
}

// Direction is the label used for a transition in logs and metrics.
func (t Transition) Direction() string {
	if t.Online {
		return "up"
	}
	return "down"
}
