package integrity

import (
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
)

// EventHash computes the content hash for a single event payload.
//
// Delegates to the event package's canonical envelope builder so field
// ordering is defined in one place and cannot drift between layers.
func EventHash(evt event.Event) (string, error) {
	return event.EventHash(evt)
}

// ChainHash computes the SHA-256 hash that links an event to its predecessor
// in the player ledger.
//
// Delegates to the event package's canonical envelope builder so field
// ordering is defined in one place and cannot drift between layers.
func ChainHash(evt event.Event, prevHash string) (string, error) {
	return event.ChainHash(evt, prevHash)
}
