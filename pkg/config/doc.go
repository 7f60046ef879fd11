// Package config provides the threshold table used by the local hysteresis oracle.
//
// A threshold table maps the number of online cores to the run-queue depths and
// hold times that move the core count up or down:
//
//	interval: 500ms
//	levels:
//	  - online: 1
//	    upDepth: 190
//	    upHold: 140ms
//	    downDepth: 300
//	  - online: 2
//	    upDepth: 190
//	    upHold: 140ms
//	    downDepth: 110
//	    downHold: 190ms
//
// Depths use the engine's fixed-point scale where 100 is one runnable task.
// Levels must be listed for online = 1, 2, ... in order. When more cores are
// online than there are levels, the last level applies.
//
// Example usage:
//
//	table, err := config.LoadThresholdTable("/etc/hotplugd/thresholds.yaml")
//	if err != nil {
//	    return err
//	}
//	level := table.Level(online)
package config
