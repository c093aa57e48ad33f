package issuer

// Capability is a moderation action subject to role policy.
type Capability int

const (
	// CapabilityUnspecified represents an invalid capability value.
	CapabilityUnspecified Capability = iota
	// CapabilityIssue creates punishments.
	CapabilityIssue
	// CapabilityChangeDuration sets an absolute punishment duration.
	CapabilityChangeDuration
	// CapabilityExtend adds to a punishment duration.
	CapabilityExtend
	// CapabilityPardon lifts a punishment.
	CapabilityPardon
	// CapabilityRestore clears a pardon or rollback override.
	CapabilityRestore
	// CapabilityRollback voids punishments in an administrative batch.
	CapabilityRollback
	// CapabilityAppealDecision applies ticket-subsystem appeal outcomes.
	CapabilityAppealDecision
	// CapabilityPropagate applies linked-ban propagation outcomes.
	CapabilityPropagate
	// CapabilityStart acknowledges that a pending punishment took effect.
	CapabilityStart
	// CapabilityAnnotate attaches notes and evidence.
	CapabilityAnnotate
)

// Decision reason codes surfaced in audit records.
const (
	ReasonAllowRole             = "ALLOW_ROLE"
	ReasonDenyRoleRequired      = "DENY_ROLE_REQUIRED"
	ReasonDenyIssuerInactive    = "DENY_ISSUER_INACTIVE"
	ReasonDenyUnknownCapability = "DENY_UNKNOWN_CAPABILITY"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed    bool
	ReasonCode string
}

// PolicyRow is one allowed (capability, role) pair.
type PolicyRow struct {
	Capability Capability
	Role       Role
}

// policy is the authoritative capability grant table. Staff tiers are listed
// explicitly rather than ranked so service roles never inherit staff grants.
var policy = map[Capability][]Role{
	CapabilityIssue:          {RoleModerator, RoleSeniorModerator, RoleAdmin, RoleSystem},
	CapabilityChangeDuration: {RoleModerator, RoleSeniorModerator, RoleAdmin},
	CapabilityExtend:         {RoleModerator, RoleSeniorModerator, RoleAdmin},
	CapabilityPardon:         {RoleSeniorModerator, RoleAdmin},
	CapabilityRestore:        {RoleAdmin},
	CapabilityRollback:       {RoleAdmin},
	CapabilityAppealDecision: {RoleAppealsService},
	CapabilityPropagate:      {RoleSystem},
	CapabilityStart:          {RoleSystem},
	CapabilityAnnotate:       {RoleModerator, RoleSeniorModerator, RoleAdmin, RoleSystem, RoleAppealsService},
}

// PolicyTable flattens the grant table into rows for inspection and tests.
func PolicyTable() []PolicyRow {
	var rows []PolicyRow
	for capability, roles := range policy {
		for _, role := range roles {
			rows = append(rows, PolicyRow{Capability: capability, Role: role})
		}
	}
	return rows
}

// Can decides whether the issuer may exercise the capability.
func Can(entry Issuer, capability Capability) Decision {
	if !entry.Active {
		return Decision{Allowed: false, ReasonCode: ReasonDenyIssuerInactive}
	}
	roles, ok := policy[capability]
	if !ok {
		return Decision{Allowed: false, ReasonCode: ReasonDenyUnknownCapability}
	}
	for _, role := range roles {
		if entry.Role == role {
			return Decision{Allowed: true, ReasonCode: ReasonAllowRole}
		}
	}
	return Decision{Allowed: false, ReasonCode: ReasonDenyRoleRequired}
}
