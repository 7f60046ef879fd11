// Package actuator applies target core masks to the hardware.
//
// # Architecture
//
// The actuator sits at the end of the decision pipeline:
//
//	DecisionWorker → TargetStore → HotplugWorker → TransitionProvider
//	                                     ↓
//	                    CoreTable, latency.Tracker, listeners, observers
//
// HotplugWorker is the only goroutine that performs core transitions and the
// only writer of the CoreTable, so transitions never race with each other.
//
// # Reconciliation Pass
//
// Every published target starts at most one pass. A target published while a
// pass is running is picked up when the pass finishes, and intermediate
// targets are skipped.
//
//  1. Refresh the online set from the provider and log changes made outside
//     the engine since the previous pass
//  2. Up phase: bring every target core that is offline online, restarting
//     from the lowest core after each success. A core that failed is not
//     retried within the same pass
//  3. Down phase: take at most one core offline, the lowest online core not
//     in the target, and only once the minimum down interval has elapsed
//     since the previous down attempt
//
// The primary core is never offered to BringOffline.
//
// # Failure Handling
//
// A failed transition is logged and counted. It does not update the
// CoreTable and is only retried when a later target asks for it again.
//
// # Transition Providers
//
//   - SysfsProvider: writes cpuN/online under /sys/devices/system/cpu
//
// Any other mechanism can be plugged in through TransitionProvider.
//
// # Usage Example
//
//	provider, err := actuator.NewSysfsProvider("/sys/devices/system/cpu")
//	worker := actuator.NewHotplugWorker(actuator.HotplugConfig{
//	    Provider: provider,
//	    Targets:  targets,
//	    Table:    table,
//	    Latency:  tracker,
//	    Config:   globalConfig,
//	})
//	go worker.Run(ctx)
package actuator
