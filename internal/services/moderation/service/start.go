package service

import (
	"context"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/ledger"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// MarkStartedRequest records the platform acknowledging that a pending
// punishment took effect, such as a banned player's next login attempt.
type MarkStartedRequest struct {
	PlayerID     string
	PunishmentID string
	IssuerID     string
	// StartsAt is when the punishment took effect. Zero defaults to the
	// engine clock.
	StartsAt time.Time
	// FutureEffective acknowledges a deliberately future-dated StartsAt,
	// such as a scheduled maintenance ban.
	FutureEffective bool
}

// MarkStarted anchors the punishment's duration window at the recorded start
// time. It fails on punishments that already started.
func (s *Service) MarkStarted(ctx context.Context, req MarkStartedRequest) (punishment.Punishment, error) {
	entry, err := s.resolveIssuer(ctx, req.IssuerID)
	if err != nil {
		return punishment.Punishment{}, err
	}
	scope := auditScope{PlayerID: req.PlayerID, PunishmentID: req.PunishmentID}
	if err := s.authorize(ctx, entry, issuer.CapabilityStart, "acknowledge punishment starts", scope); err != nil {
		return punishment.Punishment{}, err
	}

	folded, _, err := ledger.ReplayPunishment(ctx, s.journal, req.PlayerID, req.PunishmentID)
	if err != nil {
		return punishment.Punishment{}, err
	}

	startsAt := req.StartsAt
	if startsAt.IsZero() {
		startsAt = s.clock().UTC()
	}
	if _, err := punishment.StartPunishment(folded, startsAt, s.clock().UTC(), req.FutureEffective); err != nil {
		return punishment.Punishment{}, err
	}

	stored, err := s.appendEvent(ctx, event.Event{
		PlayerID:     req.PlayerID,
		Timestamp:    startsAt,
		Type:         event.TypePunishmentStarted,
		ActorType:    actorTypeForRole(entry.Role),
		ActorID:      entry.ID,
		PunishmentID: folded.ID,
	}, folded.Version, event.PunishmentStartedPayload{
		StartedAtMillis: startsAt.UTC().UnixMilli(),
		FutureEffective: req.FutureEffective,
	}, nil)
	if err != nil {
		return punishment.Punishment{}, err
	}
	folded, err = ledger.FoldEvent(folded, stored)
	if err != nil {
		return punishment.Punishment{}, err
	}

	s.emitAudit(ctx, storage.AuditEvent{
		Action:       audit.ActionCommandApplied,
		ActorType:    string(stored.ActorType),
		ActorID:      entry.ID,
		PlayerID:     req.PlayerID,
		PunishmentID: folded.ID,
		Attributes:   map[string]any{"command": "mark_started"},
	})

	return folded, nil
}
