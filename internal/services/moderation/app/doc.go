// Package app hosts the moderation worker runtime: the loop that drains the
// journal's outboxes and the gRPC health server panel probes check.
//
// The loop does two jobs on each poll. It folds appended ledger events into
// the read model exactly once, and it delivers linked-ban pardons enqueued by
// the engine, each task leased, retried with backoff, and dead-lettered when
// the attempt budget runs out. Deliveries go through the same service facade
// as staff commands, under the system identity, so propagated pardons are
// validated, audited, and absorbed on redelivery like any other modification.
package app
