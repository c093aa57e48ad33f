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

// IssueRequest describes a punishment to create.
type IssueRequest struct {
	PlayerID     string
	Type         punishment.Type
	Reason       string
	Severity     punishment.Severity
	OffenseLevel punishment.OffenseLevel
	// IssuerID is the acting staff member or service identity. The engine
	// resolves it through the directory; it never authenticates.
	IssuerID string
	// StartImmediately stamps the start time at issuance. When false the
	// punishment stays pending until a start acknowledgement arrives.
	// Instant types always start immediately.
	StartImmediately bool
	// Duration is the initial duration; nil means permanent.
	Duration *time.Duration
	Flags    punishment.Flags
	// LinkedPunishmentID references the punishment this one was propagated
	// from, set when issuing linked bans.
	LinkedPunishmentID string
	// LinkedPlayerIDs are accounts identified as the same person; pardons
	// propagate to their linked punishments.
	LinkedPlayerIDs []string
	// Notes and Evidence are recorded as attachment events alongside the
	// issuance.
	Notes    []string
	Evidence []EvidenceInput
}

// EvidenceInput is one evidence reference attached at issuance.
type EvidenceInput struct {
	URL     string
	Caption string
}

// Issue validates and records a new punishment plus its initial attachments,
// and returns the punishment as replayed from the stored events.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (punishment.Punishment, error) {
	entry, err := s.resolveIssuer(ctx, req.IssuerID)
	if err != nil {
		return punishment.Punishment{}, err
	}
	if err := s.authorize(ctx, entry, issuer.CapabilityIssue, "issue punishments", auditScope{PlayerID: req.PlayerID}); err != nil {
		return punishment.Punishment{}, err
	}

	created, err := punishment.CreatePunishment(punishment.CreatePunishmentInput{
		PlayerID:           req.PlayerID,
		Type:               req.Type,
		Reason:             req.Reason,
		Severity:           req.Severity,
		OffenseLevel:       req.OffenseLevel,
		IssuedBy:           entry.ID,
		StartImmediately:   req.StartImmediately,
		Duration:           req.Duration,
		Flags:              req.Flags,
		LinkedPunishmentID: req.LinkedPunishmentID,
		LinkedPlayerIDs:    req.LinkedPlayerIDs,
	}, s.clock, s.idGenerator)
	if err != nil {
		return punishment.Punishment{}, err
	}

	actorType := actorTypeForRole(entry.Role)
	stored, err := s.appendEvent(ctx, event.Event{
		PlayerID:     created.PlayerID,
		Timestamp:    created.IssuedAt,
		Type:         event.TypePunishmentIssued,
		ActorType:    actorType,
		ActorID:      entry.ID,
		PunishmentID: created.ID,
	}, 0, issuedPayload(created), nil)
	if err != nil {
		return punishment.Punishment{}, err
	}
	folded, err := ledger.FoldEvent(punishment.Punishment{}, stored)
	if err != nil {
		return punishment.Punishment{}, err
	}

	for _, text := range req.Notes {
		payload, err := newNotePayload(s.idGenerator, text)
		if err != nil {
			return punishment.Punishment{}, err
		}
		stored, err = s.appendEvent(ctx, event.Event{
			PlayerID:     created.PlayerID,
			Timestamp:    created.IssuedAt,
			Type:         event.TypeNoteAdded,
			ActorType:    actorType,
			ActorID:      entry.ID,
			PunishmentID: created.ID,
		}, folded.Version, payload, nil)
		if err != nil {
			return punishment.Punishment{}, err
		}
		folded, err = ledger.FoldEvent(folded, stored)
		if err != nil {
			return punishment.Punishment{}, err
		}
	}

	for _, item := range req.Evidence {
		payload, err := newEvidencePayload(s.idGenerator, item.URL, item.Caption)
		if err != nil {
			return punishment.Punishment{}, err
		}
		stored, err = s.appendEvent(ctx, event.Event{
			PlayerID:     created.PlayerID,
			Timestamp:    created.IssuedAt,
			Type:         event.TypeEvidenceAdded,
			ActorType:    actorType,
			ActorID:      entry.ID,
			PunishmentID: created.ID,
		}, folded.Version, payload, nil)
		if err != nil {
			return punishment.Punishment{}, err
		}
		folded, err = ledger.FoldEvent(folded, stored)
		if err != nil {
			return punishment.Punishment{}, err
		}
	}

	s.emitAudit(ctx, storage.AuditEvent{
		Action:       audit.ActionCommandApplied,
		ActorType:    string(actorType),
		ActorID:      entry.ID,
		PlayerID:     created.PlayerID,
		PunishmentID: created.ID,
		Attributes: map[string]any{
			"command": "issue",
			"type":    punishment.TypeLabel(created.Type),
		},
	})

	return folded, nil
}

// issuedPayload flattens an issuance into its ledger payload.
func issuedPayload(created punishment.Punishment) event.PunishmentIssuedPayload {
	payload := event.PunishmentIssuedPayload{
		Type:               punishment.TypeLabel(created.Type),
		Reason:             created.Reason,
		IssuedAtMillis:     created.IssuedAt.UnixMilli(),
		AltBlocking:        created.Flags.AltBlocking,
		StatWiping:         created.Flags.StatWiping,
		Silent:             created.Flags.Silent,
		KickSameIP:         created.Flags.KickSameIP,
		BanLinkedAccounts:  created.Flags.BanLinkedAccounts,
		LinkedPunishmentID: created.LinkedPunishmentID,
		LinkedPlayerIDs:    created.LinkedPlayerIDs,
	}
	if created.Severity != punishment.SeverityUnspecified {
		payload.Severity = punishment.SeverityLabel(created.Severity)
	}
	if created.OffenseLevel != punishment.OffenseLevelUnspecified {
		payload.OffenseLevel = punishment.OffenseLevelLabel(created.OffenseLevel)
	}
	if created.StartedAt != nil {
		millis := created.StartedAt.UnixMilli()
		payload.StartedAtMillis = &millis
	}
	if created.InitialDuration != nil {
		millis := created.InitialDuration.Milliseconds()
		payload.DurationMillis = &millis
	}
	return payload
}
