package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// hashEnvelope is the canonical hash input for one event. Field order is fixed
// by the struct so the digest cannot drift between layers; the payload is
// embedded as already-canonicalized JSON.
//
// The player ledger sequence is deliberately excluded: a retried append is
// assigned a fresh ledger slot but must still hash identically so the store
// can recognize it as a replay of the stored event.
type hashEnvelope struct {
	PlayerID       string          `json:"player_id"`
	PunishmentID   string          `json:"punishment_id"`
	PunishmentSeq  uint64          `json:"punishment_seq"`
	TimestampMs    int64           `json:"timestamp_ms"`
	Type           string          `json:"type"`
	RequestID      string          `json:"request_id,omitempty"`
	ActorType      string          `json:"actor_type"`
	ActorID        string          `json:"actor_id"`
	SourceAppealID string          `json:"source_appeal_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

// chainEnvelope binds an event hash to its ledger position and predecessor.
type chainEnvelope struct {
	PlayerID  string `json:"player_id"`
	Seq       uint64 `json:"seq"`
	EventHash string `json:"event_hash"`
	PrevHash  string `json:"prev_hash"`
}

// EventHash computes the content hash identifying an event. The digest is
// SHA-256 truncated to 128 bits and hex encoded.
func EventHash(evt Event) (string, error) {
	if strings.TrimSpace(evt.PlayerID) == "" {
		return "", fmt.Errorf("player id is required")
	}
	if evt.Timestamp.IsZero() {
		return "", fmt.Errorf("timestamp is required")
	}
	payload := evt.PayloadJSON
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	encoded, err := json.Marshal(hashEnvelope{
		PlayerID:       evt.PlayerID,
		PunishmentID:   evt.PunishmentID,
		PunishmentSeq:  evt.PunishmentSeq,
		TimestampMs:    NormalizeTimestamp(evt.Timestamp).UnixMilli(),
		Type:           string(evt.Type),
		RequestID:      evt.RequestID,
		ActorType:      string(evt.ActorType),
		ActorID:        evt.ActorID,
		SourceAppealID: evt.SourceAppealID,
		Payload:        json.RawMessage(payload),
	})
	if err != nil {
		return "", fmt.Errorf("encode hash envelope: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:16]), nil
}

// ChainHash computes the SHA-256 hash linking an event to its predecessor in
// the player ledger. The first event of a ledger links to the empty string.
func ChainHash(evt Event, prevHash string) (string, error) {
	if strings.TrimSpace(evt.Hash) == "" {
		return "", fmt.Errorf("event hash is required")
	}
	if evt.Seq == 0 {
		return "", fmt.Errorf("event seq is required")
	}
	encoded, err := json.Marshal(chainEnvelope{
		PlayerID:  evt.PlayerID,
		Seq:       evt.Seq,
		EventHash: evt.Hash,
		PrevHash:  prevHash,
	})
	if err != nil {
		return "", fmt.Errorf("encode chain envelope: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
