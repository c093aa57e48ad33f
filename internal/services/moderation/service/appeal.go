package service

import (
	"context"
	"errors"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/appeal"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/ledger"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// AppealDecisionRequest carries one decided appeal from the ticket subsystem.
type AppealDecisionRequest struct {
	PlayerID     string
	PunishmentID string
	AppealID     string
	// Grant is the signed decision grant minted by the ticket subsystem for
	// exactly this appeal, player, and punishment.
	Grant string
	// IssuerID is the appeals-service identity the decision is applied under.
	// The deciding staff member travels inside the grant as the reviewer.
	IssuerID string
}

// ApplyAppealDecision verifies the decision grant and records the decided
// appeal on the ledger. Pardons and reductions come back as the recorded
// modifications; rejections record an immutable note and return none.
// Reductions resolve against the duration currently in effect, so a second
// reduction stacks on the first instead of re-reading the original sentence.
func (s *Service) ApplyAppealDecision(ctx context.Context, req AppealDecisionRequest) ([]punishment.Modification, error) {
	entry, err := s.resolveIssuer(ctx, req.IssuerID)
	if err != nil {
		return nil, err
	}
	scope := auditScope{PlayerID: req.PlayerID, PunishmentID: req.PunishmentID, AppealID: req.AppealID}
	if err := s.authorize(ctx, entry, issuer.CapabilityAppealDecision, "apply appeal decisions", scope); err != nil {
		return nil, err
	}

	folded, _, err := ledger.ReplayPunishment(ctx, s.journal, req.PlayerID, req.PunishmentID)
	if err != nil {
		return nil, err
	}

	actorType := actorTypeForRole(entry.Role)
	claims, err := appeal.VerifyDecisionGrant(req.Grant, appeal.DecisionGrantExpectation{
		AppealID:     req.AppealID,
		PlayerID:     folded.PlayerID,
		PunishmentID: folded.ID,
	}, s.grants)
	if err != nil {
		s.emitAudit(ctx, storage.AuditEvent{
			Severity:     string(audit.SeverityWarn),
			Action:       audit.ActionGrantRejected,
			ActorType:    string(actorType),
			ActorID:      entry.ID,
			PlayerID:     scope.PlayerID,
			PunishmentID: scope.PunishmentID,
			AppealID:     scope.AppealID,
			Attributes: map[string]any{
				"command": "appeal_decision",
				"reason":  grantRejectionReason(err),
			},
		})
		return nil, err
	}

	decision, err := appeal.DecisionFromClaims(claims)
	if err != nil {
		return nil, err
	}

	// Capture the basis before translation; the reduction event records what
	// the percentage was computed against.
	basis := punishment.ResolveDuration(folded, folded.Modifications)
	outcome, err := appeal.Translate(folded, req.AppealID, decision, entry.ID, s.clock, s.idGenerator)
	if err != nil {
		return nil, err
	}

	if outcome.RejectionNote != "" {
		payload, err := newNotePayload(s.idGenerator, outcome.RejectionNote)
		if err != nil {
			return nil, err
		}
		stored, err := s.appendEvent(ctx, event.Event{
			PlayerID:       req.PlayerID,
			Timestamp:      s.clock().UTC(),
			Type:           event.TypeNoteAdded,
			ActorType:      actorType,
			ActorID:        entry.ID,
			PunishmentID:   folded.ID,
			SourceAppealID: req.AppealID,
		}, folded.Version, payload, nil)
		if err != nil {
			return nil, err
		}
		if _, err := ledger.FoldEvent(folded, stored); err != nil {
			return nil, err
		}
		s.emitAudit(ctx, storage.AuditEvent{
			Action:       audit.ActionAppealApplied,
			ActorType:    string(actorType),
			ActorID:      entry.ID,
			PlayerID:     scope.PlayerID,
			PunishmentID: scope.PunishmentID,
			AppealID:     scope.AppealID,
			Attributes: map[string]any{
				"command":  "appeal_decision",
				"decision": appeal.DecisionTypeLabel(decision.Type),
			},
		})
		return nil, nil
	}

	modification := outcome.Modifications[0]
	_, changed, err := punishment.ApplyModification(folded, modification, s.clock().UTC(), entry)
	if err != nil {
		return nil, err
	}
	if !changed {
		s.emitAudit(ctx, storage.AuditEvent{
			Action:       audit.ActionAppealApplied,
			ActorType:    string(actorType),
			ActorID:      entry.ID,
			PlayerID:     scope.PlayerID,
			PunishmentID: scope.PunishmentID,
			AppealID:     scope.AppealID,
			Attributes: map[string]any{
				"command":  "appeal_decision",
				"decision": appeal.DecisionTypeLabel(decision.Type),
				"absorbed": true,
			},
		})
		return nil, nil
	}

	eventType, payload := appealEventPayload(modification, decision, basis)

	var (
		tasks   []storage.PropagationTask
		skipped []string
	)
	if shouldPropagate(folded, modification) {
		tasks, skipped, err = s.buildPropagationTasks(ctx, folded, modification.Reason)
		if err != nil {
			return nil, err
		}
	}

	stored, err := s.appendEvent(ctx, event.Event{
		PlayerID:       req.PlayerID,
		Timestamp:      modification.IssuedAt,
		Type:           eventType,
		ActorType:      actorType,
		ActorID:        entry.ID,
		PunishmentID:   folded.ID,
		SourceAppealID: req.AppealID,
	}, folded.Version, payload, tasks)
	if err != nil {
		return nil, err
	}
	folded, err = ledger.FoldEvent(folded, stored)
	if err != nil {
		return nil, err
	}

	attributes := map[string]any{
		"command":  "appeal_decision",
		"decision": appeal.DecisionTypeLabel(decision.Type),
	}
	if len(tasks) > 0 {
		attributes["propagations"] = len(tasks)
	}
	if len(skipped) > 0 {
		attributes["skipped_players"] = skipped
	}
	s.emitAudit(ctx, storage.AuditEvent{
		Action:       audit.ActionAppealApplied,
		ActorType:    string(actorType),
		ActorID:      entry.ID,
		PlayerID:     scope.PlayerID,
		PunishmentID: scope.PunishmentID,
		AppealID:     scope.AppealID,
		Attributes:   attributes,
	})

	return []punishment.Modification{folded.Modifications[len(folded.Modifications)-1]}, nil
}

// appealEventPayload maps an appeal modification to its ledger event. The
// reduction payload records the basis the decision was computed against;
// zero basis means the punishment was permanent at decision time.
func appealEventPayload(modification punishment.Modification, decision appeal.Decision, basis punishment.Resolution) (event.Type, any) {
	if modification.Type == punishment.ModificationAppealPardon {
		return event.TypeAppealPardoned, event.AppealPardonedPayload{Reason: modification.Reason}
	}

	payload := event.AppealReducedPayload{
		Reason:         modification.Reason,
		DurationMillis: modification.EffectiveDuration.Milliseconds(),
	}
	if basis.Duration != nil {
		payload.BasisMillis = basis.Duration.Milliseconds()
	}
	if decision.Type == appeal.DecisionReducePercentage {
		payload.Percentage = decision.Percentage
	}
	return event.TypeAppealReduced, payload
}

// grantRejectionReason extracts the machine code for the audit trail.
func grantRejectionReason(err error) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	return err.Error()
}
