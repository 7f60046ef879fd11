// Package controller wires the hotplug engine together and exposes its
// control surface.
//
// # Architecture
//
// Engine owns the long-lived state of the daemon:
//   - the validated tunables (common.GlobalConfig)
//   - the per-core CoreTable, which keeps the down debounce across restarts of the pipeline
//   - the latency.Tracker
//
// Enabling the engine builds a fresh pipeline on top of it:
//
//	Sampler → Mailbox → DecisionWorker → TargetStore → HotplugWorker
//	                         ↑                               │
//	                    SlackTimer ←─────────────────────────┘ (CoreOnline/CoreOffline)
//
// Disabling stops the sampler timers, cancels and joins both workers, and
// finally cancels the slack timer. Both operations are idempotent.
//
// # Controller Instance Isolation
//
// Every engine carries an instance ID. It is attached to all log lines and
// added as the instance label to every emitted metric, so several daemons can
// share one metrics backend.
//
// # Admin Surface
//
// AdminHandler serves the JSON types of api/v1alpha1:
//
//	GET  /api/v1alpha1/status
//	GET  /api/v1alpha1/config
//	PUT  /api/v1alpha1/config
//	PUT  /api/v1alpha1/enabled
//	GET  /healthz
//	GET  /metrics
//
// A configuration update that fails validation is answered with 400 and
// leaves the running configuration untouched.
package controller
