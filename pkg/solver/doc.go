// Package solver implements the hysteresis used by the local threshold oracle.
//
// Hysteresis turns a stream of (online cores, run-queue depth, elapsed time)
// observations into Up, Down or Hold verdicts. A verdict other than Hold is
// only produced once a threshold has been crossed for at least its hold time,
// which keeps short load spikes from moving the core count.
//
// Example usage:
//
//	h := solver.NewHysteresis(config.DefaultThresholdTable())
//	switch h.Decide(online, 4, depth, sinceLast) {
//	case solver.Up:
//	    online++
//	case solver.Down:
//	    online--
//	}
//
// Hysteresis is not safe for concurrent use.
package solver
