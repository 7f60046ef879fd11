// Package collector samples scheduler load for the hotplug engine.
//
// # Architecture
//
// A LoadSource answers the system-wide run-queue depth and iowait share:
//
//	src := collector.NewProcLoadSource("/proc", 0.5)
//	load, err := src.CurrentLoad()
//
// The Sampler runs one timer per online core. Every timer is aimed at the same
// shared deadline, so whichever core fires first takes the sample and the rest
// see a deadline in the future and only rearm. This keeps sampling alive while
// any core is online without tying it to a particular one.
//
// # Sampling Policy
//
// For each sample the Sampler:
//
//  1. Ignores the fire if the deadline has not been reached
//  2. Moves the deadline to now + poll interval
//  3. Clamps the depth to possible cores x100
//  4. Holds a falling depth at the last reported value while iowait is above the threshold
//  5. Forwards the depth when its divisor bucket changed, or when the online core
//     count differs from the target and no reconciliation pass is running
//  6. On forward: cancels the slack timer, posts a run-queue update and wakes
//     the decision worker
//
// The whole sequence runs inside optimizer.Mailbox.Locked, so it is atomic
// with respect to the other sampler timers, the slack timer and the decision
// worker taking the request. Nothing in it blocks.
//
// # Start Delay
//
// Samples taken during the configured start delay after Start still advance
// the deadline but are never forwarded.
//
// # Core Transitions
//
// CoreOnline and CoreOffline start and stop a core's timer. The hotplug worker
// calls them after each successful transition.
package collector
