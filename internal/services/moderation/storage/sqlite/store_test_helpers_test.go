package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/integrity"
)

func testKeyring(t *testing.T) *integrity.Keyring {
	t.Helper()
	keyring, err := integrity.NewKeyring(
		map[string][]byte{"test-key-1": []byte("0123456789abcdef0123456789abcdef")},
		"test-key-1",
	)
	if err != nil {
		t.Fatalf("create test keyring: %v", err)
	}
	return keyring
}

func openTestJournalStore(t *testing.T) *Store {
	t.Helper()
	return openTestJournalStoreWithOutbox(t, false)
}

func openTestJournalStoreWithOutbox(t *testing.T, outboxEnabled bool) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.sqlite")
	store, err := OpenJournal(path, testKeyring(t), event.DefaultRegistry(), WithProjectionApplyOutboxEnabled(outboxEnabled))
	if err != nil {
		t.Fatalf("open journal store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close journal store: %v", err)
		}
	})
	return store
}

func openTestProjectionsStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projections.sqlite")
	store, err := OpenProjections(path)
	if err != nil {
		t.Fatalf("open projections store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close projections store: %v", err)
		}
	})
	return store
}

func testEvent(playerID, punishmentID string, typ event.Type) event.Event {
	return event.Event{
		PlayerID:     playerID,
		Timestamp:    time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		Type:         typ,
		RequestID:    "req-1",
		ActorType:    event.ActorTypeStaff,
		ActorID:      "mod-1",
		PunishmentID: punishmentID,
		PayloadJSON:  []byte(`{}`),
	}
}

// mustAppend appends one event with the given punishment-version expectation
// and fails the test on error.
func mustAppend(t *testing.T, store *Store, evt event.Event, expectedSeq uint64) event.Event {
	t.Helper()
	stored, err := store.AppendEvent(context.Background(), storage.AppendEventRequest{
		Event:                 evt,
		ExpectedPunishmentSeq: expectedSeq,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	return stored
}

func seedPunishment(t *testing.T, store *Store, playerID, punID string, state punishment.State, now time.Time) storage.PunishmentRecord {
	t.Helper()
	rec := storage.PunishmentRecord{
		ID:        punID,
		PlayerID:  playerID,
		Type:      punishment.TypeBan,
		State:     state,
		Reason:    "griefing",
		IssuedBy:  "mod-1",
		IssuedAt:  now,
		Version:   1,
		UpdatedAt: now,
	}
	if err := store.PutPunishment(context.Background(), rec); err != nil {
		t.Fatalf("seed punishment: %v", err)
	}
	return rec
}
