// Package optimizer implements the decision side of the hotplug engine.
//
// The package owns three cooperating pieces:
//
//	Sampler / SlackTimer → Mailbox → DecisionWorker → TargetStore
//	    (producers)        (slot)     (oracle call)    (hotplug worker)
//
// Mailbox is a single-slot queue. A newer request overwrites an older one
// that was not consumed yet, so the decision worker always sees the latest
// load. Its lock is also the lock of the sampler state: producers run their
// whole read-modify-write inside Mailbox.Locked.
//
// DecisionWorker blocks on the mailbox wake channel, takes the pending
// request, calls the oracle with no lock held, normalizes and publishes the
// resulting mask and arms the slack timer with the returned interval.
//
// SlackTimer forces a re-evaluation when nothing else has been forwarded for
// the slack interval. Its expiry is dropped when a run-queue update is already
// pending, since that update supersedes it.
//
// Example usage:
//
//	mb := optimizer.NewMailbox()
//	slack := optimizer.NewSlackTimer(clock.RealClock{}, mb)
//	worker := optimizer.NewDecisionWorker(mb, o, targets, slack, possible)
//	go worker.Run(ctx)
//
// Lock order is Mailbox before SlackTimer. DecisionWorker never holds the
// mailbox lock while arming the slack timer or calling the oracle.
package optimizer
