// Package appeal bridges ticket-subsystem appeal decisions into punishment
// modifications. The subsystem authenticates each decision with a signed
// grant; the bridge verifies the grant, translates the decision into at most
// one modification, and stamps everything with the source appeal id.
package appeal

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
)

// DecisionType is the outcome kind of a decided appeal.
type DecisionType int

const (
	// DecisionUnspecified represents an invalid decision value.
	DecisionUnspecified DecisionType = iota
	// DecisionPardon lifts the punishment.
	DecisionPardon
	// DecisionReducePercentage shortens the current duration by a percentage.
	DecisionReducePercentage
	// DecisionReduceFixed sets a new absolute duration.
	DecisionReduceFixed
	// DecisionReject upholds the punishment unchanged.
	DecisionReject
)

// Decision is a verified appeal outcome ready for translation.
type Decision struct {
	Type DecisionType
	// Percentage is the reduction in percent for DecisionReducePercentage,
	// exclusive of 0 and 100.
	Percentage int
	// Duration is the new absolute duration for DecisionReduceFixed.
	Duration *time.Duration
	// ReviewerID is the staff member who decided the appeal. It is recorded
	// for audit; the modification issuer stays the appeals service identity.
	ReviewerID string
	Comment    string
}

// Outcome is what an appeal decision does to the punishment: at most one
// modification, or an audit note when the appeal changes nothing.
type Outcome struct {
	Modifications []punishment.Modification
	// RejectionNote is set for rejected appeals; the caller records it as an
	// immutable note so the decision stays visible in history.
	RejectionNote string
}

// DecisionFromClaims builds a Decision from verified grant claims.
func DecisionFromClaims(claims DecisionGrantClaims) (Decision, error) {
	decisionType, err := DecisionTypeFromLabel(claims.Decision)
	if err != nil {
		return Decision{}, err
	}
	decision := Decision{
		Type:       decisionType,
		Percentage: claims.Percentage,
		ReviewerID: claims.ReviewerID,
		Comment:    claims.Comment,
	}
	if claims.DurationMs != nil {
		d := time.Duration(*claims.DurationMs) * time.Millisecond
		decision.Duration = &d
	}
	return decision, nil
}

// Translate turns a decided appeal into punishment modifications. Reductions
// resolve against the duration currently in effect, so successive reductions
// stack instead of re-reading the original sentence. issuerID is the appeals
// service identity the modifications are issued under.
func Translate(issuance punishment.Punishment, appealID string, decision Decision, issuerID string, now func() time.Time, idGenerator func() (string, error)) (Outcome, error) {
	appealID = strings.TrimSpace(appealID)
	if appealID == "" {
		return Outcome{}, apperrors.New(apperrors.CodeValidation, "appeal id is required")
	}

	switch decision.Type {
	case DecisionPardon:
		modification, err := punishment.NewModification(punishment.NewModificationInput{
			Type:           punishment.ModificationAppealPardon,
			IssuerID:       issuerID,
			Reason:         decisionReason(appealID, decision, "upheld, punishment pardoned"),
			SourceAppealID: appealID,
		}, now, idGenerator)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Modifications: []punishment.Modification{modification}}, nil

	case DecisionReducePercentage:
		if decision.Percentage <= 0 || decision.Percentage >= 100 {
			return Outcome{}, apperrors.WithMetadata(
				apperrors.CodeAppealReductionOutOfRange,
				fmt.Sprintf("reduction percentage must be between 1 and 99, got %d", decision.Percentage),
				map[string]string{"Percentage": fmt.Sprintf("%d", decision.Percentage)},
			)
		}
		current := punishment.ResolveDuration(issuance, issuance.Modifications)
		if current.Duration == nil {
			return Outcome{}, apperrors.New(apperrors.CodeAppealPermanentPercentage,
				"a permanent punishment cannot be reduced by percentage")
		}
		reduced := *current.Duration / 100 * time.Duration(100-decision.Percentage)
		modification, err := punishment.NewModification(punishment.NewModificationInput{
			Type:              punishment.ModificationAppealReduction,
			IssuerID:          issuerID,
			Reason:            decisionReason(appealID, decision, fmt.Sprintf("duration reduced by %d%%", decision.Percentage)),
			EffectiveDuration: &reduced,
			SourceAppealID:    appealID,
		}, now, idGenerator)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Modifications: []punishment.Modification{modification}}, nil

	case DecisionReduceFixed:
		if decision.Duration == nil {
			return Outcome{}, apperrors.New(apperrors.CodeMissingDurationValue,
				"fixed reduction requires a duration value")
		}
		value := *decision.Duration
		modification, err := punishment.NewModification(punishment.NewModificationInput{
			Type:              punishment.ModificationAppealReduction,
			IssuerID:          issuerID,
			Reason:            decisionReason(appealID, decision, fmt.Sprintf("duration set to %s", value)),
			EffectiveDuration: &value,
			SourceAppealID:    appealID,
		}, now, idGenerator)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Modifications: []punishment.Modification{modification}}, nil

	case DecisionReject:
		return Outcome{RejectionNote: decisionReason(appealID, decision, "rejected, punishment upheld")}, nil

	default:
		return Outcome{}, apperrors.New(apperrors.CodeAppealDecisionInvalid, "appeal decision type is unknown")
	}
}

// decisionReason builds the audit reason recorded on modifications and notes.
func decisionReason(appealID string, decision Decision, action string) string {
	reason := fmt.Sprintf("appeal %s %s", appealID, action)
	if decision.ReviewerID != "" {
		reason += fmt.Sprintf(" (decided by %s)", decision.ReviewerID)
	}
	if comment := strings.TrimSpace(decision.Comment); comment != "" {
		reason += ": " + comment
	}
	return reason
}

// DecisionTypeLabel returns a stable label for a decision type.
func DecisionTypeLabel(decisionType DecisionType) string {
	switch decisionType {
	case DecisionPardon:
		return "PARDON"
	case DecisionReducePercentage:
		return "REDUCE_PERCENTAGE"
	case DecisionReduceFixed:
		return "REDUCE_FIXED"
	case DecisionReject:
		return "REJECT"
	default:
		return "UNSPECIFIED"
	}
}

// DecisionTypeFromLabel parses a string label into a DecisionType.
// It trims whitespace and matches case-insensitively. Both short and
// DECISION_-prefixed forms are accepted.
func DecisionTypeFromLabel(value string) (DecisionType, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DecisionUnspecified, apperrors.New(apperrors.CodeAppealDecisionInvalid, "appeal decision is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "PARDON", "DECISION_PARDON":
		return DecisionPardon, nil
	case "REDUCE_PERCENTAGE", "DECISION_REDUCE_PERCENTAGE":
		return DecisionReducePercentage, nil
	case "REDUCE_FIXED", "DECISION_REDUCE_FIXED":
		return DecisionReduceFixed, nil
	case "REJECT", "DECISION_REJECT":
		return DecisionReject, nil
	default:
		return DecisionUnspecified, apperrors.New(apperrors.CodeAppealDecisionInvalid,
			fmt.Sprintf("unknown appeal decision: %s", trimmed))
	}
}
