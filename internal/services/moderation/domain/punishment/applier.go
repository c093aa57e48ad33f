package punishment

import (
	"fmt"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
)

// CapabilityFor maps a modification to the policy capability it exercises.
// Propagated modifications are always checked as propagation, whatever their
// type, so staff roles can never smuggle one in.
func CapabilityFor(modification Modification) issuer.Capability {
	if modification.SourcePropagationID != "" {
		return issuer.CapabilityPropagate
	}
	switch modification.Type {
	case ModificationManualDurationChange:
		return issuer.CapabilityChangeDuration
	case ModificationExtension:
		return issuer.CapabilityExtend
	case ModificationManualPardon:
		return issuer.CapabilityPardon
	case ModificationManualRestore:
		return issuer.CapabilityRestore
	case ModificationRollback:
		return issuer.CapabilityRollback
	case ModificationAppealReduction, ModificationAppealPardon:
		return issuer.CapabilityAppealDecision
	default:
		return issuer.CapabilityUnspecified
	}
}

// ValidateModification checks a modification against the issuance, the
// existing history, the applier clock, and the resolved issuer. It never
// mutates anything. existing must be in ledger order.
func ValidateModification(issuance Punishment, existing []Modification, modification Modification, at time.Time, entry issuer.Issuer) error {
	if !IsKnownModificationType(modification.Type) {
		return ErrUnknownModificationType
	}

	if entry.ID != modification.IssuerID {
		return apperrors.WithMetadata(apperrors.CodeUnauthorizedIssuer,
			"modification issuer does not match the resolved directory entry",
			map[string]string{"Issuer": modification.IssuerID, "Resolved": entry.ID})
	}
	decision := issuer.Can(entry, CapabilityFor(modification))
	if !decision.Allowed {
		return apperrors.WithMetadata(apperrors.CodeUnauthorizedIssuer,
			fmt.Sprintf("issuer %s may not apply %s", entry.ID, ModificationTypeLabel(modification.Type)),
			map[string]string{"Issuer": entry.ID, "Reason": decision.ReasonCode})
	}

	if RequiresDurationValue(modification.Type) && modification.EffectiveDuration == nil {
		return apperrors.WithMetadata(apperrors.CodeMissingDurationValue,
			fmt.Sprintf("modification type %s requires a duration value", ModificationTypeLabel(modification.Type)),
			map[string]string{"Type": ModificationTypeLabel(modification.Type)})
	}
	if !RequiresDurationValue(modification.Type) && modification.EffectiveDuration != nil {
		return apperrors.WithMetadata(apperrors.CodeModificationDurationExtra,
			fmt.Sprintf("modification type %s does not carry a duration value", ModificationTypeLabel(modification.Type)),
			map[string]string{"Type": ModificationTypeLabel(modification.Type)})
	}

	if modification.IssuedAt.After(at) && !modification.FutureEffective {
		return apperrors.WithMetadata(apperrors.CodeModificationFutureIssued,
			"modification is dated in the future without the future-effective flag",
			map[string]string{"IssuedAt": modification.IssuedAt.UTC().Format(time.RFC3339)})
	}

	// History is never reordered; a modification dated before the latest
	// entry would rewrite it. Equal timestamps tie-break by insertion.
	if modification.IssuedAt.Before(issuance.IssuedAt) {
		return apperrors.WithMetadata(apperrors.CodeInvalidModificationOrder,
			"modification predates the issuance",
			map[string]string{
				"IssuedAt": modification.IssuedAt.UTC().Format(time.RFC3339),
				"Issuance": issuance.IssuedAt.UTC().Format(time.RFC3339),
			})
	}
	if len(existing) > 0 {
		latest := existing[len(existing)-1].IssuedAt
		if modification.IssuedAt.Before(latest) {
			return apperrors.WithMetadata(apperrors.CodeInvalidModificationOrder,
				"modification predates the latest recorded modification",
				map[string]string{
					"IssuedAt": modification.IssuedAt.UTC().Format(time.RFC3339),
					"Latest":   latest.UTC().Format(time.RFC3339),
				})
		}
	}

	profile, err := ProfileFor(issuance.Type)
	if err != nil {
		return err
	}
	if modification.EffectiveDuration != nil && (profile.Instant || profile.AlwaysPermanent) {
		return apperrors.WithMetadata(apperrors.CodePunishmentDurationForbidden,
			fmt.Sprintf("punishment type %s does not carry a duration", TypeLabel(issuance.Type)),
			map[string]string{"Type": TypeLabel(issuance.Type)})
	}

	if modification.Type == ModificationExtension {
		resolution := ResolveDuration(issuance, existing)
		if resolution.Duration == nil {
			return apperrors.New(apperrors.CodePunishmentPermanentExtension,
				"a permanent punishment cannot be extended")
		}
	}

	if modification.Type == ModificationManualRestore {
		state := Project(issuance, existing, modification.IssuedAt)
		if state != StatePardoned && state != StateRolledBack {
			return apperrors.WithMetadata(apperrors.CodePunishmentNotRestorable,
				fmt.Sprintf("restore requires a pardoned or rolled back punishment, not %s", StateLabel(state)),
				map[string]string{"State": StateLabel(state)})
		}
	}

	return nil
}

// ApplyModification validates the modification and appends it to the
// punishment. The returned bool is false when the modification was absorbed
// as an idempotent no-op: a pardon-class modification of an already pardoned
// punishment returns the punishment unchanged and records nothing.
func ApplyModification(issuance Punishment, modification Modification, at time.Time, entry issuer.Issuer) (Punishment, bool, error) {
	if err := ValidateModification(issuance, issuance.Modifications, modification, at, entry); err != nil {
		return Punishment{}, false, err
	}

	if IsPardonModification(modification.Type) {
		if Project(issuance, issuance.Modifications, modification.IssuedAt) == StatePardoned {
			return issuance, false, nil
		}
	}

	issuance.Modifications = append(issuance.Modifications, modification)
	issuance.Version++
	return issuance, true, nil
}

// StartPunishment records the moment a pending punishment took effect, such
// as the player's next login. It fails on punishments that already started.
func StartPunishment(issuance Punishment, startsAt time.Time, at time.Time, futureEffective bool) (Punishment, error) {
	if issuance.StartedAt != nil {
		return Punishment{}, apperrors.WithMetadata(apperrors.CodePunishmentAlreadyStarted,
			"punishment has already started",
			map[string]string{"StartedAt": issuance.StartedAt.UTC().Format(time.RFC3339)})
	}
	if startsAt.Before(issuance.IssuedAt) {
		return Punishment{}, apperrors.New(apperrors.CodeValidation, "start time precedes the issuance")
	}
	if startsAt.After(at) && !futureEffective {
		return Punishment{}, apperrors.WithMetadata(apperrors.CodePunishmentStartInFuture,
			"start time is in the future without the future-effective flag",
			map[string]string{"StartsAt": startsAt.UTC().Format(time.RFC3339)})
	}

	started := startsAt.UTC()
	issuance.StartedAt = &started
	issuance.Version++
	return issuance, nil
}
