package event

// Durations inside payloads are expressed in milliseconds so payload JSON
// stays engine-agnostic and stable for hashing. A nil duration means
// permanent.

// PunishmentIssuedPayload captures the payload for punishment.issued events.
type PunishmentIssuedPayload struct {
	Type               string   `json:"type"`
	Reason             string   `json:"reason"`
	Severity           string   `json:"severity,omitempty"`
	OffenseLevel       string   `json:"offense_level,omitempty"`
	IssuedAtMillis     int64    `json:"issued_at_millis"`
	StartedAtMillis    *int64   `json:"started_at_millis,omitempty"`
	DurationMillis     *int64   `json:"duration_millis,omitempty"`
	AltBlocking        bool     `json:"alt_blocking,omitempty"`
	StatWiping         bool     `json:"stat_wiping,omitempty"`
	Silent             bool     `json:"silent,omitempty"`
	KickSameIP         bool     `json:"kick_same_ip,omitempty"`
	BanLinkedAccounts  bool     `json:"ban_linked_accounts,omitempty"`
	LinkedPunishmentID string   `json:"linked_punishment_id,omitempty"`
	LinkedPlayerIDs    []string `json:"linked_player_ids,omitempty"`
}

// PunishmentStartedPayload captures the payload for punishment.started events.
type PunishmentStartedPayload struct {
	StartedAtMillis int64 `json:"started_at_millis"`
	FutureEffective bool  `json:"future_effective,omitempty"`
}

// DurationChangedPayload captures the payload for punishment.duration_changed events.
type DurationChangedPayload struct {
	Reason          string `json:"reason"`
	DurationMillis  int64  `json:"duration_millis"`
	FutureEffective bool   `json:"future_effective,omitempty"`
}

// ExtendedPayload captures the payload for punishment.extended events.
type ExtendedPayload struct {
	Reason          string `json:"reason"`
	AddedMillis     int64  `json:"added_millis"`
	FutureEffective bool   `json:"future_effective,omitempty"`
}

// PardonedPayload captures the payload for punishment.pardoned events.
type PardonedPayload struct {
	Reason string `json:"reason"`
	// SourcePropagationID links pardons delivered by linked-ban propagation
	// back to the task that carried them.
	SourcePropagationID string `json:"source_propagation_id,omitempty"`
}

// RestoredPayload captures the payload for punishment.restored events.
type RestoredPayload struct {
	Reason string `json:"reason"`
}

// AppealReducedPayload captures the payload for punishment.appeal_reduced events.
type AppealReducedPayload struct {
	Reason string `json:"reason"`
	// BasisMillis is the duration the reduction was computed against, the
	// resolved duration at decision time. Kept so stacked reductions stay
	// auditable.
	BasisMillis    int64 `json:"basis_millis"`
	DurationMillis int64 `json:"duration_millis"`
	// Percentage is set when the decision was a percentage reduction.
	Percentage int `json:"percentage,omitempty"`
}

// AppealPardonedPayload captures the payload for punishment.appeal_pardoned events.
type AppealPardonedPayload struct {
	Reason string `json:"reason"`
}

// RolledBackPayload captures the payload for punishment.rolled_back events.
type RolledBackPayload struct {
	Reason string `json:"reason"`
	// RollbackBatchID groups rollbacks applied together, such as undoing
	// every action of a compromised staff account.
	RollbackBatchID string `json:"rollback_batch_id,omitempty"`
}

// NoteAddedPayload captures the payload for punishment.note_added events.
type NoteAddedPayload struct {
	NoteID string `json:"note_id"`
	Text   string `json:"text"`
}

// EvidenceAddedPayload captures the payload for punishment.evidence_added events.
type EvidenceAddedPayload struct {
	EvidenceID string `json:"evidence_id"`
	URL        string `json:"url"`
	Caption    string `json:"caption,omitempty"`
}
