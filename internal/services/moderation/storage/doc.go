// Package storage defines persistence contracts for the punishment ledger and
// its derived read model.
//
// Moderation code uses these interfaces to keep command handlers and fold
// logic testable and avoid depending on a concrete SQLite schema from service
// logic. The journal side (ledger, outboxes) and the read-model side
// (projections, checkpoints, audit) are separate composites because they live
// in separate databases.
package storage
