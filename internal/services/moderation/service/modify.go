package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/platform/timeouts"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/ledger"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// ModifyRequest describes one lifecycle modification to apply.
type ModifyRequest struct {
	PlayerID     string
	PunishmentID string
	// Type selects the modification. Appeal-originated types are applied
	// through ApplyAppealDecision, never here.
	Type punishment.ModificationType
	// IssuerID is the acting staff member or service identity.
	IssuerID string
	Reason   string
	// Duration carries the value for duration-bearing types; nil otherwise.
	Duration *time.Duration
	// IssuedAt defaults to the engine clock. A future value requires
	// FutureEffective.
	IssuedAt time.Time
	// FutureEffective acknowledges a deliberately future-dated IssuedAt.
	FutureEffective bool
	// RollbackBatchID groups the modifications of one administrative
	// rollback batch.
	RollbackBatchID string
	// SourcePropagationID marks modifications delivered by the propagation
	// worker. It authorizes as propagation regardless of Type and never
	// fans out again.
	SourcePropagationID string
	// ExpectedVersion is the optimistic-concurrency token, the punishment
	// version the caller last observed. Zero appends onto whatever version
	// the replay finds and only conflicts on a true concurrent write.
	ExpectedVersion uint64
}

// Modify applies one modification through the full applier flow: resolve the
// issuer, replay the ledger, validate against the rebuilt state, append, and
// return the punishment rebuilt from the stored history. A pardon-class
// modification of an already pardoned punishment is absorbed as an
// idempotent no-op and returns the punishment unchanged. Pardoning a
// punishment that bans linked accounts enqueues one propagation task per
// linked punishment, atomically with the pardon event.
func (s *Service) Modify(ctx context.Context, req ModifyRequest) (punishment.Punishment, error) {
	if punishment.IsAppealModification(req.Type) {
		return punishment.Punishment{}, apperrors.New(apperrors.CodeValidation,
			"appeal modifications are applied through the appeal bridge")
	}

	modification, err := punishment.NewModification(punishment.NewModificationInput{
		Type:                req.Type,
		IssuerID:            req.IssuerID,
		Reason:              req.Reason,
		IssuedAt:            req.IssuedAt,
		EffectiveDuration:   req.Duration,
		SourcePropagationID: req.SourcePropagationID,
		RollbackBatchID:     req.RollbackBatchID,
		FutureEffective:     req.FutureEffective,
	}, s.clock, s.idGenerator)
	if err != nil {
		return punishment.Punishment{}, err
	}

	entry, err := s.resolveIssuer(ctx, req.IssuerID)
	if err != nil {
		return punishment.Punishment{}, err
	}

	folded, _, err := ledger.ReplayPunishment(ctx, s.journal, req.PlayerID, req.PunishmentID)
	if err != nil {
		return punishment.Punishment{}, err
	}
	if err := checkExpectedVersion(folded, req.ExpectedVersion); err != nil {
		return punishment.Punishment{}, err
	}

	actorType := actorTypeForRole(entry.Role)
	scope := auditScope{PlayerID: req.PlayerID, PunishmentID: folded.ID}

	_, changed, err := punishment.ApplyModification(folded, modification, s.clock().UTC(), entry)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeUnauthorizedIssuer) {
			s.emitAudit(ctx, storage.AuditEvent{
				Severity:     string(audit.SeverityWarn),
				Action:       audit.ActionCommandDenied,
				ActorType:    string(actorType),
				ActorID:      entry.ID,
				PlayerID:     scope.PlayerID,
				PunishmentID: scope.PunishmentID,
				Attributes: map[string]any{
					"command": "modify",
					"type":    punishment.ModificationTypeLabel(modification.Type),
					"role":    issuer.RoleLabel(entry.Role),
					"reason":  apperrors.GetMetadata(err)["Reason"],
				},
			})
		}
		return punishment.Punishment{}, err
	}
	if !changed {
		s.emitAudit(ctx, storage.AuditEvent{
			Action:       audit.ActionCommandApplied,
			ActorType:    string(actorType),
			ActorID:      entry.ID,
			PlayerID:     scope.PlayerID,
			PunishmentID: scope.PunishmentID,
			Attributes: map[string]any{
				"command":  "modify",
				"type":     punishment.ModificationTypeLabel(modification.Type),
				"absorbed": true,
			},
		})
		return folded, nil
	}

	eventType, payload, err := modificationEventPayload(modification)
	if err != nil {
		return punishment.Punishment{}, err
	}

	var (
		tasks   []storage.PropagationTask
		skipped []string
	)
	if shouldPropagate(folded, modification) {
		tasks, skipped, err = s.buildPropagationTasks(ctx, folded, modification.Reason)
		if err != nil {
			return punishment.Punishment{}, err
		}
	}

	stored, err := s.appendEvent(ctx, event.Event{
		PlayerID:     req.PlayerID,
		Timestamp:    modification.IssuedAt,
		Type:         eventType,
		ActorType:    actorType,
		ActorID:      entry.ID,
		PunishmentID: folded.ID,
	}, folded.Version, payload, tasks)
	if err != nil {
		return punishment.Punishment{}, err
	}
	folded, err = ledger.FoldEvent(folded, stored)
	if err != nil {
		return punishment.Punishment{}, err
	}

	attributes := map[string]any{
		"command": "modify",
		"type":    punishment.ModificationTypeLabel(modification.Type),
	}
	if len(tasks) > 0 {
		attributes["propagations"] = len(tasks)
	}
	if len(skipped) > 0 {
		attributes["skipped_players"] = skipped
	}
	s.emitAudit(ctx, storage.AuditEvent{
		Action:       audit.ActionCommandApplied,
		ActorType:    string(actorType),
		ActorID:      entry.ID,
		PlayerID:     scope.PlayerID,
		PunishmentID: scope.PunishmentID,
		Attributes:   attributes,
	})

	return folded, nil
}

// shouldPropagate reports whether a recorded modification fans out to linked
// punishments. Only pardons propagate, and never the delivery of a
// propagation itself.
func shouldPropagate(folded punishment.Punishment, modification punishment.Modification) bool {
	if !punishment.IsPardonModification(modification.Type) {
		return false
	}
	if modification.SourcePropagationID != "" {
		return false
	}
	return folded.Flags.BanLinkedAccounts && len(folded.LinkedPlayerIDs) > 0
}

// buildPropagationTasks resolves the linked punishment of every linked
// player at enqueue time. Linked players with nothing propagated from this
// punishment are skipped and reported, not failed: an account can be linked
// before any linked ban was issued for it.
func (s *Service) buildPropagationTasks(ctx context.Context, source punishment.Punishment, reason string) ([]storage.PropagationTask, []string, error) {
	var (
		tasks   []storage.PropagationTask
		skipped []string
	)
	for _, linkedPlayerID := range source.LinkedPlayerIDs {
		lookupCtx, cancel := context.WithTimeout(ctx, timeouts.DependencyCall)
		linked, err := ledger.ReplayPlayer(lookupCtx, s.journal, linkedPlayerID)
		cancel()
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.CodeDependencyUnavailable,
				fmt.Sprintf("resolve linked punishments for player %s", linkedPlayerID), err)
		}

		matched := false
		for _, candidate := range linked {
			if candidate.LinkedPunishmentID != source.ID {
				continue
			}
			taskID, err := s.idGenerator()
			if err != nil {
				return nil, nil, fmt.Errorf("generate propagation task id: %w", err)
			}
			tasks = append(tasks, storage.PropagationTask{
				ID:                 taskID,
				PlayerID:           linkedPlayerID,
				PunishmentID:       candidate.ID,
				SourcePlayerID:     source.PlayerID,
				SourcePunishmentID: source.ID,
				Action:             storage.PropagationActionPardon,
				Reason:             reason,
			})
			matched = true
		}
		if !matched {
			skipped = append(skipped, linkedPlayerID)
		}
	}
	return tasks, skipped, nil
}

// modificationEventPayload maps a manual modification to its ledger event
// type and payload. Appeal modifications never reach this; their payloads
// carry decision context only the appeal bridge has.
func modificationEventPayload(modification punishment.Modification) (event.Type, any, error) {
	switch modification.Type {
	case punishment.ModificationManualDurationChange:
		return event.TypeDurationChanged, event.DurationChangedPayload{
			Reason:          modification.Reason,
			DurationMillis:  modification.EffectiveDuration.Milliseconds(),
			FutureEffective: modification.FutureEffective,
		}, nil
	case punishment.ModificationExtension:
		return event.TypeExtended, event.ExtendedPayload{
			Reason:          modification.Reason,
			AddedMillis:     modification.EffectiveDuration.Milliseconds(),
			FutureEffective: modification.FutureEffective,
		}, nil
	case punishment.ModificationManualPardon:
		return event.TypePardoned, event.PardonedPayload{
			Reason:              modification.Reason,
			SourcePropagationID: modification.SourcePropagationID,
		}, nil
	case punishment.ModificationManualRestore:
		return event.TypeRestored, event.RestoredPayload{Reason: modification.Reason}, nil
	case punishment.ModificationRollback:
		return event.TypeRolledBack, event.RolledBackPayload{
			Reason:          modification.Reason,
			RollbackBatchID: modification.RollbackBatchID,
		}, nil
	default:
		return "", nil, apperrors.New(apperrors.CodeModificationInvalidType,
			fmt.Sprintf("no ledger event for modification type %s", punishment.ModificationTypeLabel(modification.Type)))
	}
}
