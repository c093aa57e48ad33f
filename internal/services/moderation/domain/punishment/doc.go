// Package punishment models the punishment lifecycle: an immutable issuance,
// an append-only list of immutable modifications, and pure derivations over
// them.
//
// Nothing in this package mutates history. The effective duration and the
// observable state of a punishment are functions of the issuance, the
// modifications at or before an evaluation time, and that time. Callers that
// need "is this punishment in effect?" go through Project and never compare
// raw fields inline.
package punishment
