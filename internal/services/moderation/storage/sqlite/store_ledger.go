package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/integrity"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// eventColumns is the canonical select list for the events table. Scan order
// must match scanEventRow.
const eventColumns = "player_id, seq, event_hash, prev_event_hash, chain_hash, signature_key_id, event_signature, timestamp, event_type, request_id, actor_type, actor_id, punishment_id, punishment_seq, source_appeal_id, payload_json"

// AppendEvent atomically appends an event and returns it with sequence, hash,
// and signature fields assigned.
//
// The punishment sequence is the optimistic-concurrency version: the event
// lands at ExpectedPunishmentSeq+1 or the append fails with
// CodeConcurrentModification. A failed expectation first checks whether the
// identical event already landed so client retries return the stored row
// instead of a conflict.
func (s *Store) AppendEvent(ctx context.Context, req storage.AppendEventRequest) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if s.eventRegistry == nil {
		return event.Event{}, fmt.Errorf("event registry is required")
	}
	if s.keyring == nil {
		return event.Event{}, fmt.Errorf("event integrity keyring is required")
	}

	validated, err := s.eventRegistry.ValidateForAppend(req.Event)
	if err != nil {
		return event.Event{}, err
	}
	evt := validated
	evt.Timestamp = event.NormalizeTimestamp(evt.Timestamp)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	targetSeq := req.ExpectedPunishmentSeq + 1
	var currentSeq int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(punishment_seq), 0) FROM events WHERE punishment_id = ?`,
		evt.PunishmentID,
	).Scan(&currentSeq); err != nil {
		return event.Event{}, fmt.Errorf("read punishment seq: %w", err)
	}
	evt.PunishmentSeq = targetSeq
	if uint64(currentSeq) != req.ExpectedPunishmentSeq {
		if stored, ok := s.lookupStoredReplay(ctx, evt); ok {
			return stored, nil
		}
		return event.Event{}, punishmentSeqConflict(evt.PunishmentID, uint64(currentSeq), req.ExpectedPunishmentSeq)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO player_event_seq (player_id, next_seq) VALUES (?, 1)
		 ON CONFLICT(player_id) DO NOTHING`,
		evt.PlayerID,
	); err != nil {
		return event.Event{}, fmt.Errorf("init event seq: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT next_seq FROM player_event_seq WHERE player_id = ?`,
		evt.PlayerID,
	).Scan(&seq); err != nil {
		return event.Event{}, fmt.Errorf("get event seq: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE player_event_seq SET next_seq = next_seq + 1 WHERE player_id = ?`,
		evt.PlayerID,
	); err != nil {
		return event.Event{}, fmt.Errorf("increment event seq: %w", err)
	}
	if seq <= 0 {
		return event.Event{}, fmt.Errorf("event seq is required")
	}
	evt.Seq = uint64(seq)

	hash, err := integrity.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	if strings.TrimSpace(hash) == "" {
		return event.Event{}, fmt.Errorf("event hash is required")
	}
	evt.Hash = hash

	prevHash := ""
	if evt.Seq > 1 {
		if err := tx.QueryRowContext(
			ctx,
			`SELECT chain_hash FROM events WHERE player_id = ? AND seq = ?`,
			evt.PlayerID,
			int64(evt.Seq-1),
		).Scan(&prevHash); err != nil {
			return event.Event{}, fmt.Errorf("load previous event: %w", err)
		}
	}

	chainHash, err := integrity.ChainHash(evt, prevHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	if strings.TrimSpace(chainHash) == "" {
		return event.Event{}, fmt.Errorf("chain hash is required")
	}

	signature, keyID, err := s.keyring.SignChainHash(evt.PlayerID, chainHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("sign chain hash: %w", err)
	}

	evt.PrevHash = prevHash
	evt.ChainHash = chainHash
	evt.Signature = signature
	evt.SignatureKeyID = keyID

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO events (
		    player_id, seq, event_hash, prev_event_hash, chain_hash,
		    signature_key_id, event_signature, timestamp, event_type, request_id,
		    actor_type, actor_id, punishment_id, punishment_seq, source_appeal_id,
		    payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.PlayerID,
		int64(evt.Seq),
		evt.Hash,
		prevHash,
		chainHash,
		keyID,
		signature,
		toMillis(evt.Timestamp),
		string(evt.Type),
		evt.RequestID,
		string(evt.ActorType),
		evt.ActorID,
		evt.PunishmentID,
		int64(evt.PunishmentSeq),
		evt.SourceAppealID,
		evt.PayloadJSON,
	); err != nil {
		if isConstraintError(err) {
			if stored, ok := s.lookupStoredReplay(ctx, evt); ok {
				return stored, nil
			}
			return event.Event{}, punishmentSeqConflict(evt.PunishmentID, evt.PunishmentSeq, req.ExpectedPunishmentSeq)
		}
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}

	if err := s.enqueueProjectionApplyOutbox(ctx, tx, evt); err != nil {
		return event.Event{}, err
	}
	if err := enqueuePropagationTasksTx(ctx, tx, evt, req.PropagationTasks); err != nil {
		return event.Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit: %w", err)
	}

	return evt, nil
}

// lookupStoredReplay checks whether an identical event already landed. The
// content hash excludes the ledger sequence, so a retried append hashes to the
// same value as the row stored by the first attempt.
func (s *Store) lookupStoredReplay(ctx context.Context, evt event.Event) (event.Event, bool) {
	hash, err := integrity.EventHash(evt)
	if err != nil {
		return event.Event{}, false
	}
	stored, err := s.GetEventByHash(ctx, hash)
	if err != nil {
		return event.Event{}, false
	}
	return stored, true
}

func punishmentSeqConflict(punishmentID string, current, expected uint64) error {
	return apperrors.WithMetadata(
		apperrors.CodeConcurrentModification,
		fmt.Sprintf("punishment %s is at version %d, expected %d", punishmentID, current, expected),
		map[string]string{
			"PunishmentID": punishmentID,
			"Current":      fmt.Sprintf("%d", current),
			"Expected":     fmt.Sprintf("%d", expected),
		},
	)
}

// GetEventByHash retrieves an event by its content hash.
func (s *Store) GetEventByHash(ctx context.Context, hash string) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(hash) == "" {
		return event.Event{}, fmt.Errorf("event hash is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+eventColumns+` FROM events WHERE event_hash = ?`,
		hash,
	)
	evt, err := scanEventRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, storage.ErrNotFound
		}
		return event.Event{}, fmt.Errorf("get event by hash: %w", err)
	}
	return evt, nil
}

// GetEventBySeq retrieves a specific event by ledger sequence number.
func (s *Store) GetEventBySeq(ctx context.Context, playerID string, seq uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return event.Event{}, fmt.Errorf("player id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+eventColumns+` FROM events WHERE player_id = ? AND seq = ?`,
		playerID,
		int64(seq),
	)
	evt, err := scanEventRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, storage.ErrNotFound
		}
		return event.Event{}, fmt.Errorf("get event by seq: %w", err)
	}
	return evt, nil
}

// ListEvents returns events ordered by sequence ascending.
func (s *Store) ListEvents(ctx context.Context, playerID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE player_id = ? AND seq > ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		playerID,
		int64(afterSeq),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return collectEventRows(rows, limit)
}

// ListEventsByPunishment returns events addressing a specific punishment,
// ordered by sequence ascending.
func (s *Store) ListEventsByPunishment(ctx context.Context, playerID, punishmentID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(punishmentID) == "" {
		return nil, fmt.Errorf("punishment id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE player_id = ? AND punishment_id = ? AND seq > ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		playerID,
		punishmentID,
		int64(afterSeq),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events by punishment: %w", err)
	}
	defer rows.Close()

	return collectEventRows(rows, limit)
}

// GetLatestSeq returns the latest ledger sequence number for a player.
// Returns 0 if no events exist.
func (s *Store) GetLatestSeq(ctx context.Context, playerID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return 0, fmt.Errorf("player id is required")
	}

	var seq int64
	if err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE player_id = ?`,
		playerID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get latest event seq: %w", err)
	}
	return uint64(seq), nil
}

// GetLatestPunishmentSeq returns the latest punishment sequence for a
// punishment. Returns 0 if no events exist.
func (s *Store) GetLatestPunishmentSeq(ctx context.Context, punishmentID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(punishmentID) == "" {
		return 0, fmt.Errorf("punishment id is required")
	}

	var seq int64
	if err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(punishment_seq), 0) FROM events WHERE punishment_id = ?`,
		punishmentID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get latest punishment seq: %w", err)
	}
	return uint64(seq), nil
}

// ListEventsPage returns a paginated, filtered, and sorted list of events.
func (s *Store) ListEventsPage(ctx context.Context, req storage.ListEventsPageRequest) (storage.ListEventsPageResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListEventsPageResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ListEventsPageResult{}, fmt.Errorf("storage is not configured")
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}
	if req.PageSize > 200 {
		req.PageSize = 200
	}

	plan := buildListEventsPageSQLPlan(req)

	query := fmt.Sprintf(
		"SELECT rowid, %s FROM events WHERE %s %s %s",
		eventColumns,
		plan.whereClause,
		plan.orderClause,
		plan.limitClause,
	)

	rows, err := s.sqlDB.QueryContext(ctx, query, plan.params...)
	if err != nil {
		return storage.ListEventsPageResult{}, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0, req.PageSize)
	rowIDs := make([]int64, 0, req.PageSize)
	for rows.Next() {
		var rowID int64
		evt, err := scanEventRowID(rows, &rowID)
		if err != nil {
			return storage.ListEventsPageResult{}, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, evt)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return storage.ListEventsPageResult{}, fmt.Errorf("iterate events: %w", err)
	}

	hasMore := len(events) > req.PageSize
	if hasMore {
		events = events[:req.PageSize]
		rowIDs = rowIDs[:req.PageSize]
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events WHERE %s", plan.countWhereClause)
	var totalCount int
	if err := s.sqlDB.QueryRowContext(ctx, countQuery, plan.countParams...).Scan(&totalCount); err != nil {
		return storage.ListEventsPageResult{}, fmt.Errorf("count events: %w", err)
	}

	return storage.ListEventsPageResult{
		Events:      events,
		RowIDs:      rowIDs,
		HasNextPage: hasMore,
		TotalCount:  totalCount,
	}, nil
}

// VerifyPlayerChain recomputes hashes and signatures for one player ledger.
func (s *Store) VerifyPlayerChain(ctx context.Context, playerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if s.keyring == nil {
		return fmt.Errorf("event integrity keyring is required")
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return fmt.Errorf("player id is required")
	}

	var lastSeq uint64
	prevChainHash := ""
	for {
		events, err := s.ListEvents(ctx, playerID, lastSeq, 200)
		if err != nil {
			return fmt.Errorf("list events player_id=%s: %w", playerID, err)
		}
		if len(events) == 0 {
			return nil
		}
		for _, evt := range events {
			if evt.Seq != lastSeq+1 {
				return fmt.Errorf("event sequence gap player_id=%s expected=%d got=%d", playerID, lastSeq+1, evt.Seq)
			}
			if evt.Seq == 1 && evt.PrevHash != "" {
				return fmt.Errorf("first event prev hash must be empty player_id=%s", playerID)
			}
			if evt.Seq > 1 && evt.PrevHash != prevChainHash {
				return fmt.Errorf("prev hash mismatch player_id=%s seq=%d", playerID, evt.Seq)
			}

			hash, err := integrity.EventHash(evt)
			if err != nil {
				return fmt.Errorf("compute event hash player_id=%s seq=%d: %w", playerID, evt.Seq, err)
			}
			if hash != evt.Hash {
				return fmt.Errorf("event hash mismatch player_id=%s seq=%d", playerID, evt.Seq)
			}

			chainHash, err := integrity.ChainHash(evt, prevChainHash)
			if err != nil {
				return fmt.Errorf("compute chain hash player_id=%s seq=%d: %w", playerID, evt.Seq, err)
			}
			if chainHash != evt.ChainHash {
				return fmt.Errorf("chain hash mismatch player_id=%s seq=%d", playerID, evt.Seq)
			}

			if err := s.keyring.VerifyChainHash(playerID, chainHash, evt.Signature, evt.SignatureKeyID); err != nil {
				return fmt.Errorf("signature mismatch player_id=%s seq=%d: %w", playerID, evt.Seq, err)
			}

			prevChainHash = evt.ChainHash
			lastSeq = evt.Seq
		}
	}
}

// VerifyLedgerIntegrity validates the event chain and signatures for all
// player ledgers.
func (s *Store) VerifyLedgerIntegrity(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if s.keyring == nil {
		return fmt.Errorf("event integrity keyring is required")
	}

	playerIDs, err := s.listEventPlayerIDs(ctx)
	if err != nil {
		return err
	}
	for _, playerID := range playerIDs {
		if err := s.VerifyPlayerChain(ctx, playerID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) listEventPlayerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT DISTINCT player_id FROM events ORDER BY player_id")
	if err != nil {
		return nil, fmt.Errorf("list player ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player ids: %w", err)
	}
	return ids, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isSQLiteBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared event scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(row rowScanner) (event.Event, error) {
	var (
		evt           event.Event
		seq           int64
		timestamp     int64
		eventType     string
		actorType     string
		punishmentSeq int64
	)
	if err := row.Scan(
		&evt.PlayerID,
		&seq,
		&evt.Hash,
		&evt.PrevHash,
		&evt.ChainHash,
		&evt.SignatureKeyID,
		&evt.Signature,
		&timestamp,
		&eventType,
		&evt.RequestID,
		&actorType,
		&evt.ActorID,
		&evt.PunishmentID,
		&punishmentSeq,
		&evt.SourceAppealID,
		&evt.PayloadJSON,
	); err != nil {
		return event.Event{}, err
	}
	evt.Seq = uint64(seq)
	evt.Timestamp = fromMillis(timestamp)
	evt.Type = event.Type(eventType)
	evt.ActorType = event.ActorType(actorType)
	evt.PunishmentSeq = uint64(punishmentSeq)
	return evt, nil
}

func scanEventRowID(row rowScanner, rowID *int64) (event.Event, error) {
	var (
		evt           event.Event
		seq           int64
		timestamp     int64
		eventType     string
		actorType     string
		punishmentSeq int64
	)
	if err := row.Scan(
		rowID,
		&evt.PlayerID,
		&seq,
		&evt.Hash,
		&evt.PrevHash,
		&evt.ChainHash,
		&evt.SignatureKeyID,
		&evt.Signature,
		&timestamp,
		&eventType,
		&evt.RequestID,
		&actorType,
		&evt.ActorID,
		&evt.PunishmentID,
		&punishmentSeq,
		&evt.SourceAppealID,
		&evt.PayloadJSON,
	); err != nil {
		return event.Event{}, err
	}
	evt.Seq = uint64(seq)
	evt.Timestamp = fromMillis(timestamp)
	evt.Type = event.Type(eventType)
	evt.ActorType = event.ActorType(actorType)
	evt.PunishmentSeq = uint64(punishmentSeq)
	return evt, nil
}

func collectEventRows(rows *sql.Rows, capacity int) ([]event.Event, error) {
	events := make([]event.Event, 0, capacity)
	for rows.Next() {
		evt, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
