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

package latency

import (
	"time"
)

// Direction of a core transition.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Reader provides read-only access to the transition latency statistics.
// This interface is used by the configuration surface and the metrics collector.
type Reader interface {
	// Snapshot returns a consistent copy of all counters.
	Snapshot() Snapshot
}

// Recorder accumulates transition latencies.
// This interface is used by the hotplug worker, which is its only writer.
type Recorder interface {
	// Record adds one successful transition that took elapsed.
	Record(dir Direction, elapsed time.Duration)
}

// ReadRecorder combines both read and write access.
type ReadRecorder interface {
	Reader
	Recorder
}
