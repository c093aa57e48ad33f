// Package projection folds the punishment ledger into the panel read model.
//
// Read models are intentionally derivative: every snapshot row is rebuilt
// from the punishment's full journal history and projected with the pure
// domain resolver, so folding an event twice or out of order converges on
// the same row. Panel queries read these tables; lifecycle truth stays in
// the ledger.
package projection
