package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// handlerEntry declares the fold step for one ledger event type. apply writes
// the event-specific history row; an entry with a nil apply folds the
// snapshot only. The snapshot and player index refresh run for every event
// after the handler.
type handlerEntry struct {
	apply func(context.Context, event.Event, storage.ProjectionStore) error
}

// handlers maps each ledger event type to its fold entry. Issuance and start
// events carry no history row of their own; the snapshot refresh covers them.
var handlers = map[event.Type]handlerEntry{
	event.TypePunishmentIssued:  {},
	event.TypePunishmentStarted: {},
	event.TypeDurationChanged:   handle(event.TypeDurationChanged, applyDurationChanged),
	event.TypeExtended:          handle(event.TypeExtended, applyExtended),
	event.TypePardoned:          handle(event.TypePardoned, applyPardoned),
	event.TypeRestored:          handle(event.TypeRestored, applyRestored),
	event.TypeAppealReduced:     handle(event.TypeAppealReduced, applyAppealReduced),
	event.TypeAppealPardoned:    handle(event.TypeAppealPardoned, applyAppealPardoned),
	event.TypeRolledBack:        handle(event.TypeRolledBack, applyRolledBack),
	event.TypeNoteAdded:         handle(event.TypeNoteAdded, applyNoteAdded),
	event.TypeEvidenceAdded:     handle(event.TypeEvidenceAdded, applyEvidenceAdded),
}

// handle wraps a typed handler so it receives a pre-decoded payload instead
// of repeating the unmarshal boilerplate per event type.
func handle[P any](t event.Type, fn func(context.Context, event.Event, P, storage.ProjectionStore) error) handlerEntry {
	return handlerEntry{
		apply: func(ctx context.Context, evt event.Event, store storage.ProjectionStore) error {
			var payload P
			if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
				return fmt.Errorf("decode %s payload: %w", t, err)
			}
			return fn(ctx, evt, payload, store)
		},
	}
}

// HandledTypes returns every ledger event type the fold handles, sorted.
func HandledTypes() []event.Type {
	types := make([]event.Type, 0, len(handlers))
	for t := range handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
