package punishment

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/platform/id"
)

// ModificationType discriminates the modification union. Each type fixes
// which optional fields must be present; NewModification enforces the shape.
type ModificationType int

const (
	// ModificationUnspecified represents an invalid modification type value.
	ModificationUnspecified ModificationType = iota
	// ModificationManualDurationChange sets an absolute effective duration.
	ModificationManualDurationChange
	// ModificationManualPardon lifts the punishment from its issue time onward.
	ModificationManualPardon
	// ModificationManualRestore clears a pardon or rollback override.
	ModificationManualRestore
	// ModificationExtension adds to the current effective duration.
	ModificationExtension
	// ModificationAppealReduction sets an absolute duration derived from an
	// appeal decision.
	ModificationAppealReduction
	// ModificationAppealPardon lifts the punishment on behalf of an appeal.
	ModificationAppealPardon
	// ModificationRollback voids the punishment as part of an administrative
	// rollback batch.
	ModificationRollback
)

var (
	// ErrUnknownModificationType indicates a missing or invalid modification type.
	ErrUnknownModificationType = apperrors.New(apperrors.CodeModificationInvalidType, "modification type is unknown")
)

// Modification is an immutable, appended lifecycle change. History is never
// edited or deleted; undoing a modification means appending another one.
type Modification struct {
	ID   string
	Type ModificationType
	// IssuedAt orders modifications; ties are broken by ledger insertion.
	IssuedAt time.Time
	// IssuerID is the staff member, subsystem, or service that issued the
	// modification. The engine never infers it from ambient context.
	IssuerID string
	Reason   string
	// EffectiveDuration carries the duration value of duration-bearing
	// modification types. Nil otherwise.
	EffectiveDuration *time.Duration
	// SourceAppealID links appeal-originated modifications to their appeal.
	SourceAppealID string
	// SourcePropagationID links modifications applied by the linked-ban
	// propagation worker to their outbox task.
	SourcePropagationID string
	// RollbackBatchID groups the modifications of one administrative rollback.
	RollbackBatchID string
	// FutureEffective acknowledges an IssuedAt after the applier clock.
	FutureEffective bool
}

// NewModificationInput describes the data needed to construct a modification.
type NewModificationInput struct {
	Type     ModificationType
	IssuerID string
	Reason   string
	// IssuedAt defaults to the injected clock when zero.
	IssuedAt            time.Time
	EffectiveDuration   *time.Duration
	SourceAppealID      string
	SourcePropagationID string
	RollbackBatchID     string
	FutureEffective     bool
}

// NewModification constructs a modification, enforcing the per-type field
// shape of the union. Contextual rules that depend on the punishment or on
// prior modifications belong to ValidateModification.
func NewModification(input NewModificationInput, now func() time.Time, idGenerator func() (string, error)) (Modification, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if !IsKnownModificationType(input.Type) {
		return Modification{}, ErrUnknownModificationType
	}
	input.IssuerID = strings.TrimSpace(input.IssuerID)
	if input.IssuerID == "" {
		return Modification{}, ErrEmptyIssuerID
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if input.Reason == "" {
		return Modification{}, ErrEmptyReason
	}

	if RequiresDurationValue(input.Type) {
		if input.EffectiveDuration == nil {
			return Modification{}, apperrors.WithMetadata(
				apperrors.CodeMissingDurationValue,
				fmt.Sprintf("modification type %s requires a duration value", ModificationTypeLabel(input.Type)),
				map[string]string{"Type": ModificationTypeLabel(input.Type)},
			)
		}
		if *input.EffectiveDuration <= 0 {
			return Modification{}, apperrors.New(apperrors.CodeValidation, "duration value must be positive")
		}
	} else if input.EffectiveDuration != nil {
		return Modification{}, apperrors.WithMetadata(
			apperrors.CodeModificationDurationExtra,
			fmt.Sprintf("modification type %s does not carry a duration value", ModificationTypeLabel(input.Type)),
			map[string]string{"Type": ModificationTypeLabel(input.Type)},
		)
	}

	input.SourceAppealID = strings.TrimSpace(input.SourceAppealID)
	if IsAppealModification(input.Type) {
		if input.SourceAppealID == "" {
			return Modification{}, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("modification type %s requires a source appeal id", ModificationTypeLabel(input.Type)))
		}
		if strings.TrimSpace(input.SourcePropagationID) != "" {
			return Modification{}, apperrors.New(apperrors.CodeValidation,
				"appeal modifications never originate from propagation")
		}
	} else if input.SourceAppealID != "" {
		return Modification{}, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("modification type %s does not accept a source appeal id", ModificationTypeLabel(input.Type)))
	}

	input.RollbackBatchID = strings.TrimSpace(input.RollbackBatchID)
	if input.RollbackBatchID != "" && input.Type != ModificationRollback {
		return Modification{}, apperrors.New(apperrors.CodeValidation,
			"rollback batch id is only valid on rollback modifications")
	}

	modificationID, err := idGenerator()
	if err != nil {
		return Modification{}, fmt.Errorf("generate modification id: %w", err)
	}

	issuedAt := input.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now()
	}

	return Modification{
		ID:                  modificationID,
		Type:                input.Type,
		IssuedAt:            issuedAt.UTC(),
		IssuerID:            input.IssuerID,
		Reason:              input.Reason,
		EffectiveDuration:   input.EffectiveDuration,
		SourceAppealID:      input.SourceAppealID,
		SourcePropagationID: strings.TrimSpace(input.SourcePropagationID),
		RollbackBatchID:     input.RollbackBatchID,
		FutureEffective:     input.FutureEffective,
	}, nil
}

// IsKnownModificationType reports whether the type is a registered member of
// the union.
func IsKnownModificationType(modificationType ModificationType) bool {
	switch modificationType {
	case ModificationManualDurationChange,
		ModificationManualPardon,
		ModificationManualRestore,
		ModificationExtension,
		ModificationAppealReduction,
		ModificationAppealPardon,
		ModificationRollback:
		return true
	default:
		return false
	}
}

// RequiresDurationValue reports whether the type carries an effective duration.
func RequiresDurationValue(modificationType ModificationType) bool {
	switch modificationType {
	case ModificationManualDurationChange, ModificationExtension, ModificationAppealReduction:
		return true
	default:
		return false
	}
}

// IsPardonModification reports whether the type lifts the punishment.
func IsPardonModification(modificationType ModificationType) bool {
	return modificationType == ModificationManualPardon || modificationType == ModificationAppealPardon
}

// IsAppealModification reports whether the type originates from an appeal
// decision.
func IsAppealModification(modificationType ModificationType) bool {
	return modificationType == ModificationAppealReduction || modificationType == ModificationAppealPardon
}

// SetsAbsoluteDuration reports whether the type replaces the working duration
// rather than adding to it.
func SetsAbsoluteDuration(modificationType ModificationType) bool {
	return modificationType == ModificationManualDurationChange || modificationType == ModificationAppealReduction
}

// ModificationTypeLabel returns a stable label for a modification type.
func ModificationTypeLabel(modificationType ModificationType) string {
	switch modificationType {
	case ModificationManualDurationChange:
		return "MANUAL_DURATION_CHANGE"
	case ModificationManualPardon:
		return "MANUAL_PARDON"
	case ModificationManualRestore:
		return "MANUAL_RESTORE"
	case ModificationExtension:
		return "EXTENSION"
	case ModificationAppealReduction:
		return "APPEAL_REDUCTION"
	case ModificationAppealPardon:
		return "APPEAL_PARDON"
	case ModificationRollback:
		return "ROLLBACK"
	default:
		return "UNSPECIFIED"
	}
}

// ModificationTypeFromLabel parses a string label into a ModificationType.
// It trims whitespace and matches case-insensitively. Both short and
// MODIFICATION_TYPE_-prefixed forms are accepted.
func ModificationTypeFromLabel(value string) (ModificationType, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ModificationUnspecified, fmt.Errorf("modification type is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "MANUAL_DURATION_CHANGE", "MODIFICATION_TYPE_MANUAL_DURATION_CHANGE":
		return ModificationManualDurationChange, nil
	case "MANUAL_PARDON", "MODIFICATION_TYPE_MANUAL_PARDON":
		return ModificationManualPardon, nil
	case "MANUAL_RESTORE", "MODIFICATION_TYPE_MANUAL_RESTORE":
		return ModificationManualRestore, nil
	case "EXTENSION", "MODIFICATION_TYPE_EXTENSION":
		return ModificationExtension, nil
	case "APPEAL_REDUCTION", "MODIFICATION_TYPE_APPEAL_REDUCTION":
		return ModificationAppealReduction, nil
	case "APPEAL_PARDON", "MODIFICATION_TYPE_APPEAL_PARDON":
		return ModificationAppealPardon, nil
	case "ROLLBACK", "MODIFICATION_TYPE_ROLLBACK":
		return ModificationRollback, nil
	default:
		return ModificationUnspecified, apperrors.New(apperrors.CodeModificationInvalidType,
			fmt.Sprintf("unknown modification type: %s", trimmed))
	}
}
