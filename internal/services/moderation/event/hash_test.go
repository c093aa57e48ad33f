package event

import (
	"testing"
	"time"
)

func TestEventHashDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	evt := Event{
		PlayerID:      "player-1",
		Timestamp:     ts,
		Type:          TypePunishmentIssued,
		ActorType:     ActorTypeStaff,
		ActorID:       "mod-1",
		PunishmentID:  "pun-1",
		PunishmentSeq: 1,
		PayloadJSON:   []byte(`{"reason":"griefing"}`),
	}

	first, err := EventHash(evt)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	second, err := EventHash(evt)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	if first != second {
		t.Fatalf("expected deterministic hash, got %s and %s", first, second)
	}
	if len(first) != 32 {
		t.Fatalf("expected 128-bit hex hash, got %d chars", len(first))
	}
}

func TestEventHashChangesWithPunishmentSeq(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	base := Event{
		PlayerID:      "player-1",
		Timestamp:     ts,
		Type:          TypePardoned,
		ActorType:     ActorTypeStaff,
		ActorID:       "mod-1",
		PunishmentID:  "pun-1",
		PunishmentSeq: 2,
		PayloadJSON:   []byte(`{"reason":"appealed"}`),
	}

	baseline, err := EventHash(base)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	bumped := base
	bumped.PunishmentSeq = 3
	bumpedHash, err := EventHash(bumped)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	if baseline == bumpedHash {
		t.Fatal("expected hash to change with punishment seq")
	}
}

func TestEventHashChangesWithOptionalFields(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	base := Event{
		PlayerID:      "player-1",
		Timestamp:     ts,
		Type:          TypeAppealPardoned,
		ActorType:     ActorTypeAppeals,
		ActorID:       "appeals-service",
		PunishmentID:  "pun-1",
		PunishmentSeq: 2,
		PayloadJSON:   []byte(`{"reason":"accepted"}`),
	}

	baseline, err := EventHash(base)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	withAppeal := base
	withAppeal.SourceAppealID = "appeal-9"
	withAppealHash, err := EventHash(withAppeal)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	if baseline == withAppealHash {
		t.Fatal("expected hash to change when optional fields change")
	}
}

func TestEventHashIgnoresLedgerSeq(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	base := Event{
		PlayerID:      "player-1",
		Seq:           7,
		Timestamp:     ts,
		Type:          TypeExtended,
		ActorType:     ActorTypeStaff,
		ActorID:       "mod-1",
		PunishmentID:  "pun-1",
		PunishmentSeq: 3,
		PayloadJSON:   []byte(`{"added_millis":3600000}`),
	}

	baseline, err := EventHash(base)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	moved := base
	moved.Seq = 8
	movedHash, err := EventHash(moved)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	if baseline != movedHash {
		t.Fatal("expected ledger seq to be excluded from the content hash")
	}
}

func TestEventHashValidation(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	if _, err := EventHash(Event{Timestamp: ts, Type: TypePunishmentIssued}); err == nil {
		t.Fatal("expected error for missing player id")
	}
	if _, err := EventHash(Event{PlayerID: "player-1", Type: TypePunishmentIssued}); err == nil {
		t.Fatal("expected error for missing timestamp")
	}
}

func TestChainHashRequiresEventHash(t *testing.T) {
	evt := Event{
		PlayerID:      "player-1",
		Seq:           10,
		Timestamp:     time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Type:          TypePunishmentIssued,
		ActorType:     ActorTypeStaff,
		ActorID:       "mod-1",
		PunishmentID:  "pun-1",
		PunishmentSeq: 1,
		PayloadJSON:   []byte(`{}`),
	}

	if _, err := ChainHash(evt, "prev"); err == nil {
		t.Fatal("expected error when event hash is missing")
	}

	evt.Hash = "eventhash"
	evt.Seq = 0
	if _, err := ChainHash(evt, "prev"); err == nil {
		t.Fatal("expected error when seq is missing")
	}
}

func TestChainHashDeterministic(t *testing.T) {
	evt := Event{
		PlayerID:      "player-1",
		Seq:           10,
		Hash:          "eventhash",
		Timestamp:     time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Type:          TypePunishmentIssued,
		ActorType:     ActorTypeStaff,
		ActorID:       "mod-1",
		PunishmentID:  "pun-1",
		PunishmentSeq: 1,
		PayloadJSON:   []byte(`{}`),
	}

	first, err := ChainHash(evt, "prev")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	second, err := ChainHash(evt, "prev")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic chain hash, got %s and %s", first, second)
	}

	relinked, err := ChainHash(evt, "other-prev")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if relinked == first {
		t.Fatal("expected chain hash to change with predecessor")
	}
}
