// Package integrity provides event hash and signing helpers used to protect
// the punishment ledger's tamper-evident chain.
//
// Why this package exists:
// - It ensures each stored event carries a deterministic hash input.
// - It links events into a per-player chain so replay order and authenticity can be verified.
// - It scopes signing keys per player so a leaked derived key cannot forge another ledger.
// - It isolates cryptographic details from higher-level storage and fold code.
package integrity
