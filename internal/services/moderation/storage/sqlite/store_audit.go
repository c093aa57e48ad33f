package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

const (
	defaultAuditListLimit = 100
	maxAuditListLimit     = 500
)

// AppendAuditEvent writes one audit row. Attributes are marshaled to JSON
// when AttributesJSON was not already populated by the caller.
func (s *Store) AppendAuditEvent(ctx context.Context, rec storage.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.Action) == "" {
		return fmt.Errorf("audit action is required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	attributesJSON := rec.AttributesJSON
	if len(attributesJSON) == 0 && len(rec.Attributes) > 0 {
		encoded, err := json.Marshal(rec.Attributes)
		if err != nil {
			return fmt.Errorf("marshal audit attributes: %w", err)
		}
		attributesJSON = encoded
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO audit_events (
		    timestamp, severity, action, actor_type, actor_id, player_id,
		    punishment_id, appeal_id, request_id, trace_id, span_id, attributes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(rec.Timestamp),
		rec.Severity,
		rec.Action,
		rec.ActorType,
		rec.ActorID,
		rec.PlayerID,
		rec.PunishmentID,
		rec.AppealID,
		rec.RequestID,
		rec.TraceID,
		rec.SpanID,
		string(attributesJSON),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns recent audit rows newest first. An empty
// punishmentID lists across all punishments, which the maintenance tooling
// uses for triage.
func (s *Store) ListAuditEvents(ctx context.Context, punishmentID string, limit int) ([]storage.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	if limit > maxAuditListLimit {
		limit = maxAuditListLimit
	}

	query := `SELECT timestamp, severity, action, actor_type, actor_id, player_id,
	                 punishment_id, appeal_id, request_id, trace_id, span_id, attributes_json
	          FROM audit_events`
	params := make([]any, 0, 2)
	if strings.TrimSpace(punishmentID) != "" {
		query += ` WHERE punishment_id = ?`
		params = append(params, punishmentID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	params = append(params, limit)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var records []storage.AuditEvent
	for rows.Next() {
		var (
			rec            storage.AuditEvent
			timestamp      int64
			attributesJSON string
		)
		if err := rows.Scan(
			&timestamp,
			&rec.Severity,
			&rec.Action,
			&rec.ActorType,
			&rec.ActorID,
			&rec.PlayerID,
			&rec.PunishmentID,
			&rec.AppealID,
			&rec.RequestID,
			&rec.TraceID,
			&rec.SpanID,
			&attributesJSON,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		rec.Timestamp = fromMillis(timestamp)
		if attributesJSON != "" {
			rec.AttributesJSON = []byte(attributesJSON)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return records, nil
}
