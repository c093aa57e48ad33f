package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/ledger"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// exportDocument is the JSON envelope written by -export. Events carry their
// full envelopes so the export can be re-verified offline.
type exportDocument struct {
	PlayerID     string          `json:"player_id"`
	PunishmentID string          `json:"punishment_id,omitempty"`
	ExportedAt   time.Time       `json:"exported_at"`
	LastSeq      uint64          `json:"last_seq"`
	Events       []exportedEvent `json:"events"`
}

type exportedEvent struct {
	Seq            uint64          `json:"seq"`
	PunishmentSeq  uint64          `json:"punishment_seq"`
	Timestamp      time.Time       `json:"timestamp"`
	Type           event.Type      `json:"type"`
	ActorType      event.ActorType `json:"actor_type"`
	ActorID        string          `json:"actor_id"`
	PunishmentID   string          `json:"punishment_id"`
	RequestID      string          `json:"request_id,omitempty"`
	SourceAppealID string          `json:"source_appeal_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Hash           string          `json:"hash"`
	PrevHash       string          `json:"prev_hash,omitempty"`
	ChainHash      string          `json:"chain_hash"`
	SignatureKeyID string          `json:"signature_key_id"`
	Signature      string          `json:"signature"`
}

// stateReport is the JSON shape written by -project.
type stateReport struct {
	PlayerID                string     `json:"player_id"`
	PunishmentID            string     `json:"punishment_id"`
	At                      time.Time  `json:"at"`
	State                   string     `json:"state"`
	Version                 uint64     `json:"version"`
	StartedAt               *time.Time `json:"started_at,omitempty"`
	EffectiveDurationMillis *int64     `json:"effective_duration_ms,omitempty"`
	ExpiresAt               *time.Time `json:"expires_at,omitempty"`
	Permanent               bool       `json:"permanent"`
}

// runExport writes a player's ledger history, optionally filtered to one
// punishment, as one JSON document.
func runExport(ctx context.Context, journal storage.LedgerStore, cfg Config, out io.Writer) error {
	document := exportDocument{
		PlayerID:     cfg.PlayerID,
		PunishmentID: cfg.PunishmentID,
		ExportedAt:   time.Now().UTC(),
		Events:       []exportedEvent{},
	}

	list := func(afterSeq uint64) ([]event.Event, error) {
		if cfg.PunishmentID != "" {
			return journal.ListEventsByPunishment(ctx, cfg.PlayerID, cfg.PunishmentID, afterSeq, ledgerPageSize)
		}
		return journal.ListEvents(ctx, cfg.PlayerID, afterSeq, ledgerPageSize)
	}

	lastSeq := cfg.AfterSeq
	for {
		events, err := list(lastSeq)
		if err != nil {
			return fmt.Errorf("list ledger events: %w", err)
		}
		if len(events) == 0 {
			break
		}
		for _, evt := range events {
			if cfg.UntilSeq > 0 && evt.Seq > cfg.UntilSeq {
				document.LastSeq = lastSeq
				return finishExport(document, out)
			}
			lastSeq = evt.Seq
			document.Events = append(document.Events, exportLedgerEvent(evt))
		}
		if len(events) < ledgerPageSize {
			break
		}
	}
	document.LastSeq = lastSeq
	return finishExport(document, out)
}

func finishExport(document exportDocument, out io.Writer) error {
	if len(document.Events) == 0 {
		if document.PunishmentID != "" {
			return fmt.Errorf("no ledger events found for player %s punishment %s", document.PlayerID, document.PunishmentID)
		}
		return fmt.Errorf("no ledger events found for player %s", document.PlayerID)
	}
	return writeJSON(out, document)
}

func exportLedgerEvent(evt event.Event) exportedEvent {
	payload := json.RawMessage(evt.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return exportedEvent{
		Seq:            evt.Seq,
		PunishmentSeq:  evt.PunishmentSeq,
		Timestamp:      evt.Timestamp.UTC(),
		Type:           evt.Type,
		ActorType:      evt.ActorType,
		ActorID:        evt.ActorID,
		PunishmentID:   evt.PunishmentID,
		RequestID:      evt.RequestID,
		SourceAppealID: evt.SourceAppealID,
		Payload:        payload,
		Hash:           evt.Hash,
		PrevHash:       evt.PrevHash,
		ChainHash:      evt.ChainHash,
		SignatureKeyID: evt.SignatureKeyID,
		Signature:      evt.Signature,
	}
}

// runProjectState replays one punishment and projects its state at the
// requested instant. With no -at it answers "what is the state right now".
func runProjectState(ctx context.Context, journal storage.LedgerStore, cfg Config, out io.Writer) error {
	at := time.Now().UTC()
	if cfg.At != "" {
		parsed, err := time.Parse(time.RFC3339, cfg.At)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		at = parsed.UTC()
	}

	folded, _, err := ledger.ReplayPunishment(ctx, journal, cfg.PlayerID, cfg.PunishmentID)
	if err != nil {
		return err
	}
	state := punishment.Project(folded, folded.Modifications, at)
	resolution := punishment.ResolveDurationAt(folded, folded.Modifications, at)

	report := stateReport{
		PlayerID:     cfg.PlayerID,
		PunishmentID: cfg.PunishmentID,
		At:           at,
		State:        punishment.StateLabel(state),
		Version:      folded.Version,
		Permanent:    resolution.Duration == nil,
	}
	if resolution.StartedAt != nil {
		started := resolution.StartedAt.UTC()
		report.StartedAt = &started
	}
	if resolution.Duration != nil {
		millis := resolution.Duration.Milliseconds()
		report.EffectiveDurationMillis = &millis
	}
	if expiresAt, ok := resolution.ExpiresAt(); ok {
		expires := expiresAt.UTC()
		report.ExpiresAt = &expires
	}

	if cfg.JSONOutput {
		return writeJSON(out, report)
	}

	fmt.Fprintf(out, "Punishment %s for player %s at %s: %s (version %d)\n",
		report.PunishmentID, report.PlayerID, at.Format(time.RFC3339), report.State, report.Version)
	if report.StartedAt != nil {
		fmt.Fprintf(out, "Started at: %s\n", report.StartedAt.Format(time.RFC3339))
	}
	if report.Permanent {
		fmt.Fprintln(out, "Effective duration: permanent")
	} else if report.EffectiveDurationMillis != nil {
		fmt.Fprintf(out, "Effective duration: %s\n", resolution.Duration.String())
	}
	if report.ExpiresAt != nil {
		fmt.Fprintf(out, "Expires at: %s\n", report.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
