// Package ledger folds journal events back into domain punishments. The
// journal is the source of truth; every consumer that needs a punishment's
// issuance, modification history, or attachments rebuilds them through this
// one fold so the command path, the projection folder, and maintenance
// tooling can never disagree about what the history says.
package ledger
