// Package sqlite provides SQLite-backed moderation persistence.
//
// The punishment journal and the derived read model live in separate database
// files opened through separate constructors. The journal file owns the
// append-only events table plus the outboxes enqueued with appends; the
// projections file owns fold output, apply checkpoints, and audit rows. Keeping
// them apart means read-model rebuilds never touch the source of truth.
package sqlite
