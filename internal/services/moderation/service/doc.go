// Package service is the synchronous moderation engine facade embedded by
// panel services: issuance, lifecycle modifications, appeal decisions,
// attachments, and ledger-backed views.
//
// The facade performs no authentication. Every command names the acting
// issuer explicitly; the engine resolves the issuer through the directory
// and authorizes the resolved role against the action. Commands replay the
// punishment's journal history, validate against the rebuilt state, and
// append exactly one event per accepted change, so the journal stays the
// single source of truth and reads never depend on the asynchronous read
// model.
package service
