package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/ledger"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// AddNoteRequest attaches one note to a punishment.
type AddNoteRequest struct {
	PlayerID     string
	PunishmentID string
	IssuerID     string
	Text         string
}

// AddNote appends an attributed note. Notes are append-only and never change
// the effective terms of a punishment.
func (s *Service) AddNote(ctx context.Context, req AddNoteRequest) (punishment.Note, error) {
	entry, err := s.resolveIssuer(ctx, req.IssuerID)
	if err != nil {
		return punishment.Note{}, err
	}
	scope := auditScope{PlayerID: req.PlayerID, PunishmentID: req.PunishmentID}
	if err := s.authorize(ctx, entry, issuer.CapabilityAnnotate, "annotate punishments", scope); err != nil {
		return punishment.Note{}, err
	}

	folded, _, err := ledger.ReplayPunishment(ctx, s.journal, req.PlayerID, req.PunishmentID)
	if err != nil {
		return punishment.Note{}, err
	}

	payload, err := newNotePayload(s.idGenerator, req.Text)
	if err != nil {
		return punishment.Note{}, err
	}
	stored, err := s.appendEvent(ctx, event.Event{
		PlayerID:     req.PlayerID,
		Timestamp:    s.clock().UTC(),
		Type:         event.TypeNoteAdded,
		ActorType:    actorTypeForRole(entry.Role),
		ActorID:      entry.ID,
		PunishmentID: folded.ID,
	}, folded.Version, payload, nil)
	if err != nil {
		return punishment.Note{}, err
	}
	folded, err = ledger.FoldEvent(folded, stored)
	if err != nil {
		return punishment.Note{}, err
	}

	s.emitAudit(ctx, storage.AuditEvent{
		Action:       audit.ActionCommandApplied,
		ActorType:    string(stored.ActorType),
		ActorID:      entry.ID,
		PlayerID:     req.PlayerID,
		PunishmentID: folded.ID,
		Attributes:   map[string]any{"command": "add_note"},
	})

	return folded.Notes[len(folded.Notes)-1], nil
}

// AddEvidenceRequest attaches one evidence reference to a punishment.
type AddEvidenceRequest struct {
	PlayerID     string
	PunishmentID string
	IssuerID     string
	URL          string
	Caption      string
}

// AddEvidence appends an attributed evidence reference.
func (s *Service) AddEvidence(ctx context.Context, req AddEvidenceRequest) (punishment.Evidence, error) {
	entry, err := s.resolveIssuer(ctx, req.IssuerID)
	if err != nil {
		return punishment.Evidence{}, err
	}
	scope := auditScope{PlayerID: req.PlayerID, PunishmentID: req.PunishmentID}
	if err := s.authorize(ctx, entry, issuer.CapabilityAnnotate, "annotate punishments", scope); err != nil {
		return punishment.Evidence{}, err
	}

	folded, _, err := ledger.ReplayPunishment(ctx, s.journal, req.PlayerID, req.PunishmentID)
	if err != nil {
		return punishment.Evidence{}, err
	}

	payload, err := newEvidencePayload(s.idGenerator, req.URL, req.Caption)
	if err != nil {
		return punishment.Evidence{}, err
	}
	stored, err := s.appendEvent(ctx, event.Event{
		PlayerID:     req.PlayerID,
		Timestamp:    s.clock().UTC(),
		Type:         event.TypeEvidenceAdded,
		ActorType:    actorTypeForRole(entry.Role),
		ActorID:      entry.ID,
		PunishmentID: folded.ID,
	}, folded.Version, payload, nil)
	if err != nil {
		return punishment.Evidence{}, err
	}
	folded, err = ledger.FoldEvent(folded, stored)
	if err != nil {
		return punishment.Evidence{}, err
	}

	s.emitAudit(ctx, storage.AuditEvent{
		Action:       audit.ActionCommandApplied,
		ActorType:    string(stored.ActorType),
		ActorID:      entry.ID,
		PlayerID:     req.PlayerID,
		PunishmentID: folded.ID,
		Attributes:   map[string]any{"command": "add_evidence"},
	})

	return folded.Evidence[len(folded.Evidence)-1], nil
}

func newNotePayload(idGenerator func() (string, error), text string) (event.NoteAddedPayload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return event.NoteAddedPayload{}, apperrors.New(apperrors.CodeValidation, "note text is required")
	}
	noteID, err := idGenerator()
	if err != nil {
		return event.NoteAddedPayload{}, fmt.Errorf("generate note id: %w", err)
	}
	return event.NoteAddedPayload{NoteID: noteID, Text: text}, nil
}

func newEvidencePayload(idGenerator func() (string, error), url, caption string) (event.EvidenceAddedPayload, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return event.EvidenceAddedPayload{}, apperrors.New(apperrors.CodeValidation, "evidence url is required")
	}
	evidenceID, err := idGenerator()
	if err != nil {
		return event.EvidenceAddedPayload{}, fmt.Errorf("generate evidence id: %w", err)
	}
	return event.EvidenceAddedPayload{EvidenceID: evidenceID, URL: url, Caption: strings.TrimSpace(caption)}, nil
}
