package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// punishmentColumns is the canonical select list for punishments rows. Scan
// order must match scanPunishmentRow.
const punishmentColumns = "id, player_id, punishment_type, state, reason, severity, offense_level, issued_by, issued_at, started_at, effective_duration_ms, expires_at, version, alt_blocking, stat_wiping, silent, kick_same_ip, ban_linked_accounts, linked_punishment_id, note_count, evidence_count, updated_at"

// PutPunishment upserts the resolved punishment snapshot.
func (s *Store) PutPunishment(ctx context.Context, rec storage.PunishmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("punishment id is required")
	}
	if strings.TrimSpace(rec.PlayerID) == "" {
		return fmt.Errorf("player id is required")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO punishments (
		    id, player_id, punishment_type, state, reason, severity, offense_level,
		    issued_by, issued_at, started_at, effective_duration_ms, expires_at,
		    version, alt_blocking, stat_wiping, silent, kick_same_ip,
		    ban_linked_accounts, linked_punishment_id, note_count, evidence_count,
		    updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    player_id = excluded.player_id,
		    punishment_type = excluded.punishment_type,
		    state = excluded.state,
		    reason = excluded.reason,
		    severity = excluded.severity,
		    offense_level = excluded.offense_level,
		    issued_by = excluded.issued_by,
		    issued_at = excluded.issued_at,
		    started_at = excluded.started_at,
		    effective_duration_ms = excluded.effective_duration_ms,
		    expires_at = excluded.expires_at,
		    version = excluded.version,
		    alt_blocking = excluded.alt_blocking,
		    stat_wiping = excluded.stat_wiping,
		    silent = excluded.silent,
		    kick_same_ip = excluded.kick_same_ip,
		    ban_linked_accounts = excluded.ban_linked_accounts,
		    linked_punishment_id = excluded.linked_punishment_id,
		    note_count = excluded.note_count,
		    evidence_count = excluded.evidence_count,
		    updated_at = excluded.updated_at`,
		rec.ID,
		rec.PlayerID,
		punishment.TypeLabel(rec.Type),
		punishment.StateLabel(rec.State),
		rec.Reason,
		severityToString(rec.Severity),
		offenseLevelToString(rec.OffenseLevel),
		rec.IssuedBy,
		toMillis(rec.IssuedAt),
		toNullMillis(rec.StartedAt),
		toNullDurationMillis(rec.EffectiveDuration),
		toNullMillis(rec.ExpiresAt),
		int64(rec.Version),
		rec.AltBlocking,
		rec.StatWiping,
		rec.Silent,
		rec.KickSameIP,
		rec.BanLinkedAccounts,
		rec.LinkedPunishmentID,
		rec.NoteCount,
		rec.EvidenceCount,
		toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put punishment: %w", err)
	}
	return nil
}

// GetPunishment fetches a punishment record by id.
func (s *Store) GetPunishment(ctx context.Context, punishmentID string) (storage.PunishmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PunishmentRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.PunishmentRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(punishmentID) == "" {
		return storage.PunishmentRecord{}, fmt.Errorf("punishment id is required")
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+punishmentColumns+` FROM punishments WHERE id = ?`,
		punishmentID,
	)
	rec, err := scanPunishmentRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PunishmentRecord{}, storage.ErrNotFound
		}
		return storage.PunishmentRecord{}, fmt.Errorf("get punishment: %w", err)
	}
	return rec, nil
}

// ListPunishmentsByPlayer returns all punishments for a player ordered by
// issuance time.
func (s *Store) ListPunishmentsByPlayer(ctx context.Context, playerID string) ([]storage.PunishmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return nil, fmt.Errorf("player id is required")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+punishmentColumns+` FROM punishments
		 WHERE player_id = ?
		 ORDER BY issued_at ASC, id ASC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list punishments by player: %w", err)
	}
	defer rows.Close()

	var records []storage.PunishmentRecord
	for rows.Next() {
		rec, err := scanPunishmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan punishment: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate punishments: %w", err)
	}
	return records, nil
}

// ListPunishments returns a page of punishment records ordered by storage key.
func (s *Store) ListPunishments(ctx context.Context, pageSize int, pageToken string) (storage.PunishmentPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.PunishmentPage{}, err
	}
	if s == nil || s.db == nil {
		return storage.PunishmentPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.PunishmentPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+punishmentColumns+` FROM punishments ORDER BY id ASC LIMIT ?`,
			pageSize+1,
		)
	} else {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+punishmentColumns+` FROM punishments WHERE id > ? ORDER BY id ASC LIMIT ?`,
			pageToken,
			pageSize+1,
		)
	}
	if err != nil {
		return storage.PunishmentPage{}, fmt.Errorf("list punishments: %w", err)
	}
	defer rows.Close()

	page := storage.PunishmentPage{
		Punishments: make([]storage.PunishmentRecord, 0, pageSize),
	}
	for rows.Next() {
		rec, err := scanPunishmentRow(rows)
		if err != nil {
			return storage.PunishmentPage{}, fmt.Errorf("scan punishment: %w", err)
		}
		if len(page.Punishments) >= pageSize {
			page.NextPageToken = page.Punishments[pageSize-1].ID
			break
		}
		page.Punishments = append(page.Punishments, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.PunishmentPage{}, fmt.Errorf("iterate punishments: %w", err)
	}
	return page, nil
}

// PutModification upserts one ordered modification history row.
func (s *Store) PutModification(ctx context.Context, rec storage.ModificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.PunishmentID) == "" {
		return fmt.Errorf("punishment id is required")
	}
	if rec.Ordinal == 0 {
		return fmt.Errorf("modification ordinal must be greater than zero")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO punishment_modifications (
		    punishment_id, ordinal, modification_id, modification_type, issued_at,
		    issuer_id, reason, effective_duration_ms, source_appeal_id,
		    source_propagation_id, rollback_batch_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(punishment_id, ordinal) DO UPDATE SET
		    modification_id = excluded.modification_id,
		    modification_type = excluded.modification_type,
		    issued_at = excluded.issued_at,
		    issuer_id = excluded.issuer_id,
		    reason = excluded.reason,
		    effective_duration_ms = excluded.effective_duration_ms,
		    source_appeal_id = excluded.source_appeal_id,
		    source_propagation_id = excluded.source_propagation_id,
		    rollback_batch_id = excluded.rollback_batch_id`,
		rec.PunishmentID,
		int64(rec.Ordinal),
		rec.ModificationID,
		punishment.ModificationTypeLabel(rec.Type),
		toMillis(rec.IssuedAt),
		rec.IssuerID,
		rec.Reason,
		toNullDurationMillis(rec.EffectiveDuration),
		rec.SourceAppealID,
		rec.SourcePropagationID,
		rec.RollbackBatchID,
	)
	if err != nil {
		return fmt.Errorf("put modification: %w", err)
	}
	return nil
}

// ListModifications returns modification rows ordered by ordinal.
func (s *Store) ListModifications(ctx context.Context, punishmentID string) ([]storage.ModificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(punishmentID) == "" {
		return nil, fmt.Errorf("punishment id is required")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT punishment_id, ordinal, modification_id, modification_type, issued_at,
		        issuer_id, reason, effective_duration_ms, source_appeal_id,
		        source_propagation_id, rollback_batch_id
		 FROM punishment_modifications
		 WHERE punishment_id = ?
		 ORDER BY ordinal ASC`,
		punishmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list modifications: %w", err)
	}
	defer rows.Close()

	var records []storage.ModificationRecord
	for rows.Next() {
		var (
			rec        storage.ModificationRecord
			ordinal    int64
			typeLabel  string
			issuedAt   int64
			durationMs sql.NullInt64
		)
		if err := rows.Scan(
			&rec.PunishmentID,
			&ordinal,
			&rec.ModificationID,
			&typeLabel,
			&issuedAt,
			&rec.IssuerID,
			&rec.Reason,
			&durationMs,
			&rec.SourceAppealID,
			&rec.SourcePropagationID,
			&rec.RollbackBatchID,
		); err != nil {
			return nil, fmt.Errorf("scan modification: %w", err)
		}
		modType, err := punishment.ModificationTypeFromLabel(typeLabel)
		if err != nil {
			return nil, fmt.Errorf("parse modification type: %w", err)
		}
		rec.Ordinal = uint64(ordinal)
		rec.Type = modType
		rec.IssuedAt = fromMillis(issuedAt)
		rec.EffectiveDuration = fromNullDurationMillis(durationMs)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modifications: %w", err)
	}
	return records, nil
}

// PutNote upserts an append-only note row.
func (s *Store) PutNote(ctx context.Context, rec storage.NoteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("note id is required")
	}
	if strings.TrimSpace(rec.PunishmentID) == "" {
		return fmt.Errorf("punishment id is required")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO punishment_notes (
		    id, punishment_id, player_id, author_id, note_text, source_appeal_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    punishment_id = excluded.punishment_id,
		    player_id = excluded.player_id,
		    author_id = excluded.author_id,
		    note_text = excluded.note_text,
		    source_appeal_id = excluded.source_appeal_id,
		    created_at = excluded.created_at`,
		rec.ID,
		rec.PunishmentID,
		rec.PlayerID,
		rec.AuthorID,
		rec.Text,
		rec.SourceAppealID,
		toMillis(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put note: %w", err)
	}
	return nil
}

// ListNotes returns note rows for a punishment ordered by creation time.
func (s *Store) ListNotes(ctx context.Context, punishmentID string) ([]storage.NoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(punishmentID) == "" {
		return nil, fmt.Errorf("punishment id is required")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, punishment_id, player_id, author_id, note_text, source_appeal_id, created_at
		 FROM punishment_notes
		 WHERE punishment_id = ?
		 ORDER BY created_at ASC, id ASC`,
		punishmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var records []storage.NoteRecord
	for rows.Next() {
		var (
			rec       storage.NoteRecord
			createdAt int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.PunishmentID,
			&rec.PlayerID,
			&rec.AuthorID,
			&rec.Text,
			&rec.SourceAppealID,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return records, nil
}

// PutEvidence upserts an append-only evidence row.
func (s *Store) PutEvidence(ctx context.Context, rec storage.EvidenceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("evidence id is required")
	}
	if strings.TrimSpace(rec.PunishmentID) == "" {
		return fmt.Errorf("punishment id is required")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO punishment_evidence (
		    id, punishment_id, player_id, author_id, url, caption, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    punishment_id = excluded.punishment_id,
		    player_id = excluded.player_id,
		    author_id = excluded.author_id,
		    url = excluded.url,
		    caption = excluded.caption,
		    added_at = excluded.added_at`,
		rec.ID,
		rec.PunishmentID,
		rec.PlayerID,
		rec.AuthorID,
		rec.URL,
		rec.Caption,
		toMillis(rec.AddedAt),
	)
	if err != nil {
		return fmt.Errorf("put evidence: %w", err)
	}
	return nil
}

// ListEvidence returns evidence rows for a punishment ordered by attach time.
func (s *Store) ListEvidence(ctx context.Context, punishmentID string) ([]storage.EvidenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(punishmentID) == "" {
		return nil, fmt.Errorf("punishment id is required")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, punishment_id, player_id, author_id, url, caption, added_at
		 FROM punishment_evidence
		 WHERE punishment_id = ?
		 ORDER BY added_at ASC, id ASC`,
		punishmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var records []storage.EvidenceRecord
	for rows.Next() {
		var (
			rec     storage.EvidenceRecord
			addedAt int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.PunishmentID,
			&rec.PlayerID,
			&rec.AuthorID,
			&rec.URL,
			&rec.Caption,
			&addedAt,
		); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		rec.AddedAt = fromMillis(addedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return records, nil
}

// GetPlayerIndex returns the per-player punishment summary.
// Returns storage.ErrNotFound if the player has no indexed punishments.
func (s *Store) GetPlayerIndex(ctx context.Context, playerID string) (storage.PlayerIndexRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PlayerIndexRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.PlayerIndexRecord{}, fmt.Errorf("storage is not configured")
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return storage.PlayerIndexRecord{}, fmt.Errorf("player id is required")
	}

	var (
		rec          storage.PlayerIndexRecord
		lastIssuedAt sql.NullInt64
		updatedAt    int64
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT player_id, total_count, active_count, last_issued_at, updated_at
		 FROM player_punishment_index
		 WHERE player_id = ?`,
		playerID,
	).Scan(&rec.PlayerID, &rec.TotalCount, &rec.ActiveCount, &lastIssuedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.PlayerIndexRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PlayerIndexRecord{}, fmt.Errorf("get player index: %w", err)
	}
	rec.LastIssuedAt = fromNullMillis(lastIssuedAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// PutPlayerIndex upserts the per-player punishment summary.
func (s *Store) PutPlayerIndex(ctx context.Context, rec storage.PlayerIndexRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	rec.PlayerID = strings.TrimSpace(rec.PlayerID)
	if rec.PlayerID == "" {
		return fmt.Errorf("player id is required")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO player_punishment_index (player_id, total_count, active_count, last_issued_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		     total_count = excluded.total_count,
		     active_count = excluded.active_count,
		     last_issued_at = excluded.last_issued_at,
		     updated_at = excluded.updated_at`,
		rec.PlayerID,
		rec.TotalCount,
		rec.ActiveCount,
		toNullMillis(rec.LastIssuedAt),
		toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put player index: %w", err)
	}
	return nil
}

func severityToString(severity punishment.Severity) string {
	if severity == punishment.SeverityUnspecified {
		return ""
	}
	return punishment.SeverityLabel(severity)
}

func offenseLevelToString(level punishment.OffenseLevel) string {
	if level == punishment.OffenseLevelUnspecified {
		return ""
	}
	return punishment.OffenseLevelLabel(level)
}

func scanPunishmentRow(row rowScanner) (storage.PunishmentRecord, error) {
	var (
		rec           storage.PunishmentRecord
		typeLabel     string
		stateLabel    string
		severityLabel string
		offenseLabel  string
		issuedAt      int64
		startedAt     sql.NullInt64
		durationMs    sql.NullInt64
		expiresAt     sql.NullInt64
		version       int64
		updatedAt     int64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.PlayerID,
		&typeLabel,
		&stateLabel,
		&rec.Reason,
		&severityLabel,
		&offenseLabel,
		&rec.IssuedBy,
		&issuedAt,
		&startedAt,
		&durationMs,
		&expiresAt,
		&version,
		&rec.AltBlocking,
		&rec.StatWiping,
		&rec.Silent,
		&rec.KickSameIP,
		&rec.BanLinkedAccounts,
		&rec.LinkedPunishmentID,
		&rec.NoteCount,
		&rec.EvidenceCount,
		&updatedAt,
	); err != nil {
		return storage.PunishmentRecord{}, err
	}

	punishmentType, err := punishment.TypeFromLabel(typeLabel)
	if err != nil {
		return storage.PunishmentRecord{}, fmt.Errorf("parse punishment type: %w", err)
	}
	state, err := punishment.StateFromLabel(stateLabel)
	if err != nil {
		return storage.PunishmentRecord{}, fmt.Errorf("parse punishment state: %w", err)
	}
	severity, err := punishment.SeverityFromLabel(severityLabel)
	if err != nil {
		return storage.PunishmentRecord{}, fmt.Errorf("parse severity: %w", err)
	}
	offenseLevel, err := punishment.OffenseLevelFromLabel(offenseLabel)
	if err != nil {
		return storage.PunishmentRecord{}, fmt.Errorf("parse offense level: %w", err)
	}

	rec.Type = punishmentType
	rec.State = state
	rec.Severity = severity
	rec.OffenseLevel = offenseLevel
	rec.IssuedAt = fromMillis(issuedAt)
	rec.StartedAt = fromNullMillis(startedAt)
	rec.EffectiveDuration = fromNullDurationMillis(durationMs)
	rec.ExpiresAt = fromNullMillis(expiresAt)
	rec.Version = uint64(version)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
