// Package core provides the domain model shared by every stage of the hotplug engine.
//
// The types in this package describe what flows between the stages:
//
//   - CoreID: a logical CPU index as the kernel numbers it
//   - Event / Request: the single pending decision request (run-queue update or slack expiry)
//   - Decision: the oracle's answer, a core mask plus a slack interval
//   - TargetState: a published Decision tagged with a generation number
//   - Transition: one completed online/offline change, reported to observers
//
// Core masks are k8s.io/utils/cpuset CPUSets. The helpers here normalize oracle
// masks against the set of possible cores and convert to and from the 64-bit
// words used by fixed-width wire formats.
//
// Example usage:
//
//	possible := cpuset.New(0, 1, 2, 3)
//	mask := core.NormalizeMask(cpuset.New(1, 7), possible)
//	// mask == {0,1}: core 7 does not exist and the primary core is always kept
//
// The core package is designed to be:
//   - Free of I/O and locking (pure values)
//   - Independent of the backing oracle and transition provider
package core
