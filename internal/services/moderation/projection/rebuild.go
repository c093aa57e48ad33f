package projection

import (
	"context"
	"errors"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/ledger"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// refreshSnapshot rebuilds the punishment row from its full journal history.
// The rebuilt row depends only on the journal, never on previously folded
// rows, so every apply converges on the same snapshot regardless of delivery
// order. The evaluation instant is the newest event timestamp in the
// history, keeping the stored state a pure function of the ledger. The
// triggering event is always present because outbox rows are enqueued in the
// same transaction as the append.
func (f *Folder) refreshSnapshot(ctx context.Context, evt event.Event, store storage.ProjectionStore) error {
	folded, at, err := ledger.ReplayPunishment(ctx, f.journal, evt.PlayerID, evt.PunishmentID)
	if err != nil {
		return err
	}

	state := punishment.Project(folded, folded.Modifications, at)
	resolution := punishment.ResolveDurationAt(folded, folded.Modifications, at)

	previous := punishment.StateUnspecified
	existing, err := store.GetPunishment(ctx, evt.PunishmentID)
	switch {
	case err == nil:
		previous = existing.State
	case errors.Is(err, storage.ErrNotFound):
	default:
		return err
	}
	if err := punishment.TransitionPunishmentState(previous, state); err != nil {
		return err
	}

	rec := storage.PunishmentRecord{
		ID:                 folded.ID,
		PlayerID:           folded.PlayerID,
		Type:               folded.Type,
		State:              state,
		Reason:             folded.Reason,
		Severity:           folded.Severity,
		OffenseLevel:       folded.OffenseLevel,
		IssuedBy:           folded.IssuedBy,
		IssuedAt:           folded.IssuedAt,
		StartedAt:          resolution.StartedAt,
		EffectiveDuration:  resolution.Duration,
		Version:            folded.Version,
		AltBlocking:        folded.Flags.AltBlocking,
		StatWiping:         folded.Flags.StatWiping,
		Silent:             folded.Flags.Silent,
		KickSameIP:         folded.Flags.KickSameIP,
		BanLinkedAccounts:  folded.Flags.BanLinkedAccounts,
		LinkedPunishmentID: folded.LinkedPunishmentID,
		NoteCount:          len(folded.Notes),
		EvidenceCount:      len(folded.Evidence),
		UpdatedAt:          at,
	}
	if expiresAt, ok := resolution.ExpiresAt(); ok {
		rec.ExpiresAt = &expiresAt
	}
	return store.PutPunishment(ctx, rec)
}

// refreshPlayerIndex recomputes the per-player aggregate from the snapshot
// rows visible inside the apply transaction, including the one just written.
func refreshPlayerIndex(ctx context.Context, evt event.Event, store storage.ProjectionStore) error {
	rows, err := store.ListPunishmentsByPlayer(ctx, evt.PlayerID)
	if err != nil {
		return err
	}
	index := storage.PlayerIndexRecord{
		PlayerID:   evt.PlayerID,
		TotalCount: len(rows),
		UpdatedAt:  evt.Timestamp,
	}
	for _, row := range rows {
		if row.State == punishment.StateActive {
			index.ActiveCount++
		}
		if index.LastIssuedAt == nil || row.IssuedAt.After(*index.LastIssuedAt) {
			issuedAt := row.IssuedAt
			index.LastIssuedAt = &issuedAt
		}
	}
	return store.PutPlayerIndex(ctx, index)
}
