// Package event defines the canonical event envelope and event-type registry used by
// the punishment ledger write path.
//
// Events are immutable business facts: one issuance event followed by zero or
// more modification events per punishment, appended in order and never edited
// or deleted. The registry enforces addressing and actor metadata and payload
// validity before persistence assigns sequence and integrity fields.
//
// A stable event contract is the foundation for replay, projection correctness,
// and audit consumers that depend on the same semantic names.
package event
