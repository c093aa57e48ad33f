package projection

import (
	"context"
	"fmt"
	"strings"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// Consumer is the checkpoint consumer name of the panel read-model fold.
// Changing it orphans existing checkpoints and refolds every event.
const Consumer = "panel-folder"

// Folder folds ledger events into read-model rows. Construct with NewFolder;
// the zero value has no journal to replay from.
type Folder struct {
	journal storage.LedgerStore
}

// NewFolder creates a Folder that rebuilds snapshots from the given journal.
func NewFolder(journal storage.LedgerStore) *Folder {
	return &Folder{journal: journal}
}

// Apply folds one ledger event into the read model. It is shaped as the
// callback of CheckpointStore.ApplyEventExactlyOnce: store is bound to the
// apply transaction, and any error rolls the whole fold back.
//
// Journal reads happen outside that transaction. The outbox row is enqueued
// atomically with the append, so the triggering event is in the journal
// before Apply ever sees it, and appended events never change.
func (f *Folder) Apply(ctx context.Context, evt event.Event, store storage.ProjectionStore) error {
	if f == nil || f.journal == nil {
		return fmt.Errorf("projection folder has no journal")
	}
	handler, ok := handlers[evt.Type]
	if !ok {
		return fmt.Errorf("unhandled ledger event type: %s", evt.Type)
	}
	if err := validateEnvelope(evt); err != nil {
		return err
	}
	if handler.apply != nil {
		if err := handler.apply(ctx, evt, store); err != nil {
			return err
		}
	}
	if err := f.refreshSnapshot(ctx, evt, store); err != nil {
		return err
	}
	return refreshPlayerIndex(ctx, evt, store)
}

// validateEnvelope checks the envelope fields every fold step depends on.
// Sequence fields are storage-assigned; a zero means the caller handed in an
// event that never went through the journal.
func validateEnvelope(evt event.Event) error {
	if strings.TrimSpace(evt.PlayerID) == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(evt.PunishmentID) == "" {
		return fmt.Errorf("punishment id is required")
	}
	if evt.Seq == 0 || evt.PunishmentSeq == 0 {
		return fmt.Errorf("event %s for %s has no storage-assigned sequence", evt.Type, evt.PunishmentID)
	}
	return nil
}
