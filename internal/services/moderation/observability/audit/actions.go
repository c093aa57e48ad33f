package audit

// Action names follow `moderation.<surface>.<outcome>` so operational
// consumers can filter by prefix. The command name itself travels in the
// event attributes.
const (
	// ActionCommandApplied captures a ledger append accepted by the engine.
	ActionCommandApplied = "moderation.command.applied"
	// ActionCommandDenied captures an issuer authorization denial.
	ActionCommandDenied = "moderation.command.denied"
	// ActionAppealApplied captures a verified appeal decision recorded on the ledger.
	ActionAppealApplied = "moderation.appeal.applied"
	// ActionGrantRejected captures an appeal decision grant that failed verification.
	ActionGrantRejected = "moderation.appeal.grant_rejected"
	// ActionPropagationDelivered captures a linked propagation task applied downstream.
	ActionPropagationDelivered = "moderation.propagation.delivered"
	// ActionPropagationDeadLettered captures a propagation task that exhausted its retry budget.
	ActionPropagationDeadLettered = "moderation.propagation.dead_letter"
)
