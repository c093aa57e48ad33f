package projection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// modificationRow builds the common history row for a modification event.
// The event hash doubles as the modification id: the event is the
// modification, and the hash is its content-addressed identity.
func modificationRow(evt event.Event, typ punishment.ModificationType, reason string) storage.ModificationRecord {
	return storage.ModificationRecord{
		PunishmentID:   evt.PunishmentID,
		Ordinal:        evt.PunishmentSeq,
		ModificationID: evt.Hash,
		Type:           typ,
		IssuedAt:       evt.Timestamp,
		IssuerID:       evt.ActorID,
		Reason:         reason,
		SourceAppealID: evt.SourceAppealID,
	}
}

func applyDurationChanged(ctx context.Context, evt event.Event, payload event.DurationChangedPayload, store storage.ProjectionStore) error {
	row := modificationRow(evt, punishment.ModificationManualDurationChange, payload.Reason)
	duration := time.Duration(payload.DurationMillis) * time.Millisecond
	row.EffectiveDuration = &duration
	return store.PutModification(ctx, row)
}

func applyExtended(ctx context.Context, evt event.Event, payload event.ExtendedPayload, store storage.ProjectionStore) error {
	row := modificationRow(evt, punishment.ModificationExtension, payload.Reason)
	added := time.Duration(payload.AddedMillis) * time.Millisecond
	row.EffectiveDuration = &added
	return store.PutModification(ctx, row)
}

func applyPardoned(ctx context.Context, evt event.Event, payload event.PardonedPayload, store storage.ProjectionStore) error {
	row := modificationRow(evt, punishment.ModificationManualPardon, payload.Reason)
	row.SourcePropagationID = payload.SourcePropagationID
	return store.PutModification(ctx, row)
}

func applyRestored(ctx context.Context, evt event.Event, payload event.RestoredPayload, store storage.ProjectionStore) error {
	return store.PutModification(ctx, modificationRow(evt, punishment.ModificationManualRestore, payload.Reason))
}

func applyAppealReduced(ctx context.Context, evt event.Event, payload event.AppealReducedPayload, store storage.ProjectionStore) error {
	row := modificationRow(evt, punishment.ModificationAppealReduction, payload.Reason)
	duration := time.Duration(payload.DurationMillis) * time.Millisecond
	row.EffectiveDuration = &duration
	return store.PutModification(ctx, row)
}

func applyAppealPardoned(ctx context.Context, evt event.Event, payload event.AppealPardonedPayload, store storage.ProjectionStore) error {
	return store.PutModification(ctx, modificationRow(evt, punishment.ModificationAppealPardon, payload.Reason))
}

func applyRolledBack(ctx context.Context, evt event.Event, payload event.RolledBackPayload, store storage.ProjectionStore) error {
	row := modificationRow(evt, punishment.ModificationRollback, payload.Reason)
	row.RollbackBatchID = payload.RollbackBatchID
	return store.PutModification(ctx, row)
}

func applyNoteAdded(ctx context.Context, evt event.Event, payload event.NoteAddedPayload, store storage.ProjectionStore) error {
	if strings.TrimSpace(payload.NoteID) == "" {
		return fmt.Errorf("%s payload has no note id", evt.Type)
	}
	return store.PutNote(ctx, storage.NoteRecord{
		ID:             payload.NoteID,
		PunishmentID:   evt.PunishmentID,
		PlayerID:       evt.PlayerID,
		AuthorID:       evt.ActorID,
		Text:           payload.Text,
		SourceAppealID: evt.SourceAppealID,
		CreatedAt:      evt.Timestamp,
	})
}

func applyEvidenceAdded(ctx context.Context, evt event.Event, payload event.EvidenceAddedPayload, store storage.ProjectionStore) error {
	if strings.TrimSpace(payload.EvidenceID) == "" {
		return fmt.Errorf("%s payload has no evidence id", evt.Type)
	}
	return store.PutEvidence(ctx, storage.EvidenceRecord{
		ID:           payload.EvidenceID,
		PunishmentID: evt.PunishmentID,
		PlayerID:     evt.PlayerID,
		AuthorID:     evt.ActorID,
		URL:          payload.URL,
		Caption:      payload.Caption,
		AddedAt:      evt.Timestamp,
	})
}
