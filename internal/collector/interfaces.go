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

package collector

// Load is one system-wide load reading.
type Load struct {
	// Depth is the run-queue depth in units of 1/100 runnable task.
	Depth uint32
	// IOWaitPct is the share of CPU time spent in iowait since the previous reading, 0-100.
	IOWaitPct uint32
}

// LoadSource provides the current scheduler load.
// CurrentLoad is called from sampler callbacks and must be cheap and non-blocking.
type LoadSource interface {
	CurrentLoad() (Load, error)
}

// LoadSourceFunc adapts a function to LoadSource.
type LoadSourceFunc func() (Load, error)

// CurrentLoad implements LoadSource.
func (f LoadSourceFunc) CurrentLoad() (Load, error) {
	return f()
}

// OnlineCounter reports how many cores are online right now.
type OnlineCounter interface {
	OnlineCount() int
}

// TargetView is the part of the published target the sampler needs for its
// significance check.
type TargetView interface {
	// WantOnline is the number of cores in the latest target mask.
	WantOnline() int
	// InFlight reports whether a reconciliation pass is running.
	InFlight() bool
}

// SampleObserver is told about every sample that was taken.
type SampleObserver interface {
	ObserveSample(depth uint32, forwarded bool)
}
