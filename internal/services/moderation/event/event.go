package event

import (
	"strings"
	"time"
)

// Type identifies the type of a ledger event.
type Type string

// Issuance lifecycle events.
const (
	// TypePunishmentIssued records the creation of a punishment.
	TypePunishmentIssued Type = "punishment.issued"
	// TypePunishmentStarted records the moment an issued punishment took
	// effect, for punishments that start on the player's next login.
	TypePunishmentStarted Type = "punishment.started"
)

// Modification events. Each corresponds to one immutable modification
// appended to a punishment's history.
const (
	// TypeDurationChanged records a manual absolute duration change.
	TypeDurationChanged Type = "punishment.duration_changed"
	// TypeExtended records a relative extension of the current duration.
	TypeExtended Type = "punishment.extended"
	// TypePardoned records a manual pardon.
	TypePardoned Type = "punishment.pardoned"
	// TypeRestored records a manual restore after a pardon or rollback.
	TypeRestored Type = "punishment.restored"
	// TypeAppealReduced records an appeal-driven duration reduction.
	TypeAppealReduced Type = "punishment.appeal_reduced"
	// TypeAppealPardoned records an appeal-driven pardon.
	TypeAppealPardoned Type = "punishment.appeal_pardoned"
	// TypeRolledBack records a rollback of the issuance.
	TypeRolledBack Type = "punishment.rolled_back"
)

// Attachment events. Notes and evidence are append-only and independently
// attributed; they never change the effective terms of a punishment.
const (
	// TypeNoteAdded records a staff or system note, including the audit
	// note written when an appeal is rejected.
	TypeNoteAdded Type = "punishment.note_added"
	// TypeEvidenceAdded records an evidence reference.
	TypeEvidenceAdded Type = "punishment.evidence_added"
)

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates the event was triggered by the panel itself,
	// such as linked-ban propagation or a login-time start acknowledgement.
	ActorTypeSystem ActorType = "system"
	// ActorTypeStaff indicates the event was triggered by a staff member.
	ActorTypeStaff ActorType = "staff"
	// ActorTypeAppeals indicates the event was derived from an appeal decision.
	ActorTypeAppeals ActorType = "appeals"
)

// Event represents an immutable event in the per-player punishment ledger.
type Event struct {
	// PlayerID is the player aggregate this event belongs to.
	PlayerID string
	// Seq is the event sequence number within the player ledger (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by storage on append.
	Hash string
	// PrevHash is the chain hash of the preceding ledger event, empty for the
	// first event of a player. Assigned by storage on append.
	PrevHash string
	// ChainHash links this event to its predecessor for tamper evidence.
	// Assigned by storage on append.
	ChainHash string
	// SignatureKeyID names the HMAC key that produced Signature.
	// Assigned by storage on append.
	SignatureKeyID string
	// Signature is the HMAC over ChainHash with a per-player derived key.
	// Assigned by storage on append.
	Signature string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// RequestID correlates events with the originating panel request.
	RequestID string
	// ActorType identifies who triggered the event.
	ActorType ActorType
	// ActorID is the staff member or subsystem that triggered the event.
	ActorID string
	// PunishmentID is the punishment this event addresses.
	PunishmentID string
	// PunishmentSeq is the event's position within the punishment's own
	// history (issuance = 1). It doubles as the optimistic-concurrency
	// version: appends carry the expected predecessor value. Assigned by
	// storage on append.
	PunishmentSeq uint64
	// SourceAppealID links appeal-derived events back to the appeal ticket.
	SourceAppealID string
	// PayloadJSON holds event-specific data as canonical JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "punishment").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
