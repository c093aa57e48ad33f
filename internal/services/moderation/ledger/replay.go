package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// replayPageSize bounds one journal read while rebuilding a punishment.
const replayPageSize = 256

// ReplayPunishment folds the full ledger history of one punishment into a
// domain punishment. The returned time is the newest event timestamp in the
// history, the evaluation instant consumers use when they need a state that
// is a pure function of the ledger. A punishment with no history returns
// CodeNotFound.
func ReplayPunishment(ctx context.Context, journal storage.LedgerStore, playerID, punishmentID string) (punishment.Punishment, time.Time, error) {
	if journal == nil {
		return punishment.Punishment{}, time.Time{}, fmt.Errorf("ledger store is required")
	}

	var (
		folded   punishment.Punishment
		at       time.Time
		afterSeq uint64
	)
	for {
		events, err := journal.ListEventsByPunishment(ctx, playerID, punishmentID, afterSeq, replayPageSize)
		if err != nil {
			return punishment.Punishment{}, time.Time{}, fmt.Errorf("replay punishment %s: %w", punishmentID, err)
		}
		for _, evt := range events {
			folded, err = FoldEvent(folded, evt)
			if err != nil {
				return punishment.Punishment{}, time.Time{}, err
			}
			if evt.Timestamp.After(at) {
				at = evt.Timestamp
			}
			afterSeq = evt.Seq
		}
		if len(events) < replayPageSize {
			break
		}
	}
	if folded.ID == "" {
		return punishment.Punishment{}, time.Time{}, apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("punishment %s has no ledger history", punishmentID),
			map[string]string{"PunishmentID": punishmentID, "PlayerID": playerID},
		)
	}
	return folded, at, nil
}

// ReplayPlayer folds every punishment in a player ledger, ordered by the
// ledger position of their issuance events. Players with no history return
// an empty slice, not an error; an empty ledger is a legitimate answer for
// panel views.
func ReplayPlayer(ctx context.Context, journal storage.LedgerStore, playerID string) ([]punishment.Punishment, error) {
	if journal == nil {
		return nil, fmt.Errorf("ledger store is required")
	}

	var (
		order    []string
		folded   = map[string]punishment.Punishment{}
		afterSeq uint64
	)
	for {
		events, err := journal.ListEvents(ctx, playerID, afterSeq, replayPageSize)
		if err != nil {
			return nil, fmt.Errorf("replay player %s: %w", playerID, err)
		}
		for _, evt := range events {
			current, seen := folded[evt.PunishmentID]
			if !seen {
				order = append(order, evt.PunishmentID)
			}
			next, err := FoldEvent(current, evt)
			if err != nil {
				return nil, err
			}
			folded[evt.PunishmentID] = next
			afterSeq = evt.Seq
		}
		if len(events) < replayPageSize {
			break
		}
	}

	punishments := make([]punishment.Punishment, 0, len(order))
	for _, punishmentID := range order {
		punishments = append(punishments, folded[punishmentID])
	}
	return punishments, nil
}

// FoldEvent applies one ledger event to the in-memory punishment. It mirrors
// what the write side recorded rather than re-validating it: the journal
// already accepted these events. The zero punishment is the starting point;
// the first event of a history must be the issuance.
func FoldEvent(folded punishment.Punishment, evt event.Event) (punishment.Punishment, error) {
	if evt.Type == event.TypePunishmentIssued {
		if folded.ID != "" {
			return folded, fmt.Errorf("punishment %s issued twice in ledger", evt.PunishmentID)
		}
		issued, err := foldIssued(evt)
		if err != nil {
			return folded, err
		}
		issued.Version = evt.PunishmentSeq
		return issued, nil
	}
	if folded.ID == "" {
		return folded, fmt.Errorf("ledger for punishment %s does not begin with %s", evt.PunishmentID, event.TypePunishmentIssued)
	}

	switch evt.Type {
	case event.TypePunishmentStarted:
		var payload event.PunishmentStartedPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		started := fromPayloadMillis(payload.StartedAtMillis)
		folded.StartedAt = &started
	case event.TypeDurationChanged:
		var payload event.DurationChangedPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		duration := time.Duration(payload.DurationMillis) * time.Millisecond
		modification := modificationFromEvent(evt, punishment.ModificationManualDurationChange, payload.Reason)
		modification.EffectiveDuration = &duration
		modification.FutureEffective = payload.FutureEffective
		folded.Modifications = append(folded.Modifications, modification)
	case event.TypeExtended:
		var payload event.ExtendedPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		added := time.Duration(payload.AddedMillis) * time.Millisecond
		modification := modificationFromEvent(evt, punishment.ModificationExtension, payload.Reason)
		modification.EffectiveDuration = &added
		modification.FutureEffective = payload.FutureEffective
		folded.Modifications = append(folded.Modifications, modification)
	case event.TypePardoned:
		var payload event.PardonedPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		modification := modificationFromEvent(evt, punishment.ModificationManualPardon, payload.Reason)
		modification.SourcePropagationID = payload.SourcePropagationID
		folded.Modifications = append(folded.Modifications, modification)
	case event.TypeRestored:
		var payload event.RestoredPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		folded.Modifications = append(folded.Modifications, modificationFromEvent(evt, punishment.ModificationManualRestore, payload.Reason))
	case event.TypeAppealReduced:
		var payload event.AppealReducedPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		duration := time.Duration(payload.DurationMillis) * time.Millisecond
		modification := modificationFromEvent(evt, punishment.ModificationAppealReduction, payload.Reason)
		modification.EffectiveDuration = &duration
		folded.Modifications = append(folded.Modifications, modification)
	case event.TypeAppealPardoned:
		var payload event.AppealPardonedPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		folded.Modifications = append(folded.Modifications, modificationFromEvent(evt, punishment.ModificationAppealPardon, payload.Reason))
	case event.TypeRolledBack:
		var payload event.RolledBackPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		modification := modificationFromEvent(evt, punishment.ModificationRollback, payload.Reason)
		modification.RollbackBatchID = payload.RollbackBatchID
		folded.Modifications = append(folded.Modifications, modification)
	case event.TypeNoteAdded:
		var payload event.NoteAddedPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		folded.Notes = append(folded.Notes, punishment.Note{
			ID:             payload.NoteID,
			AuthorID:       evt.ActorID,
			Text:           payload.Text,
			SourceAppealID: evt.SourceAppealID,
			CreatedAt:      evt.Timestamp,
		})
	case event.TypeEvidenceAdded:
		var payload event.EvidenceAddedPayload
		if err := decodePayload(evt, &payload); err != nil {
			return folded, err
		}
		folded.Evidence = append(folded.Evidence, punishment.Evidence{
			ID:       payload.EvidenceID,
			AuthorID: evt.ActorID,
			URL:      payload.URL,
			Caption:  payload.Caption,
			AddedAt:  evt.Timestamp,
		})
	default:
		return folded, fmt.Errorf("unhandled ledger event type: %s", evt.Type)
	}

	folded.Version = evt.PunishmentSeq
	return folded, nil
}

// foldIssued reconstructs the issuance from a punishment.issued event.
func foldIssued(evt event.Event) (punishment.Punishment, error) {
	var payload event.PunishmentIssuedPayload
	if err := decodePayload(evt, &payload); err != nil {
		return punishment.Punishment{}, err
	}
	punishmentType, err := punishment.TypeFromLabel(payload.Type)
	if err != nil {
		return punishment.Punishment{}, err
	}
	severity, err := punishment.SeverityFromLabel(payload.Severity)
	if err != nil {
		return punishment.Punishment{}, err
	}
	offenseLevel, err := punishment.OffenseLevelFromLabel(payload.OffenseLevel)
	if err != nil {
		return punishment.Punishment{}, err
	}
	return punishment.Punishment{
		ID:              evt.PunishmentID,
		PlayerID:        evt.PlayerID,
		Type:            punishmentType,
		Reason:          payload.Reason,
		Severity:        severity,
		OffenseLevel:    offenseLevel,
		IssuedBy:        evt.ActorID,
		IssuedAt:        fromPayloadMillis(payload.IssuedAtMillis),
		StartedAt:       optionalPayloadTime(payload.StartedAtMillis),
		InitialDuration: optionalPayloadDuration(payload.DurationMillis),
		Flags: punishment.Flags{
			AltBlocking:       payload.AltBlocking,
			StatWiping:        payload.StatWiping,
			Silent:            payload.Silent,
			KickSameIP:        payload.KickSameIP,
			BanLinkedAccounts: payload.BanLinkedAccounts,
		},
		LinkedPunishmentID: payload.LinkedPunishmentID,
		LinkedPlayerIDs:    payload.LinkedPlayerIDs,
	}, nil
}

func decodePayload(evt event.Event, dst any) error {
	if err := json.Unmarshal(evt.PayloadJSON, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	return nil
}

// modificationFromEvent fills the envelope-derived fields of a modification.
// The event content hash is the modification identity: the event is the
// modification, so the id survives rebuilds without a separate id column.
func modificationFromEvent(evt event.Event, typ punishment.ModificationType, reason string) punishment.Modification {
	return punishment.Modification{
		ID:             evt.Hash,
		Type:           typ,
		IssuedAt:       evt.Timestamp,
		IssuerID:       evt.ActorID,
		Reason:         reason,
		SourceAppealID: evt.SourceAppealID,
	}
}

func fromPayloadMillis(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}

func optionalPayloadTime(millis *int64) *time.Time {
	if millis == nil {
		return nil
	}
	t := fromPayloadMillis(*millis)
	return &t
}

func optionalPayloadDuration(millis *int64) *time.Duration {
	if millis == nil {
		return nil
	}
	d := time.Duration(*millis) * time.Millisecond
	return &d
}
