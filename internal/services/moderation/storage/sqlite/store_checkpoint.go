package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

const (
	// maxBusyRetries bounds how often an exactly-once apply is retried when
	// SQLite reports the database as busy or locked.
	maxBusyRetries = 8
	retryBaseDelay = 10 * time.Millisecond
)

// ApplyEventExactlyOnce reserves a per-consumer checkpoint row for the event
// and runs apply inside the same transaction. If the checkpoint already
// exists the event was applied before and apply is skipped; the returned bool
// reports whether apply ran. The apply callback receives a transaction-bound
// store so every read-model write it performs commits or rolls back together
// with the checkpoint.
func (s *Store) ApplyEventExactlyOnce(ctx context.Context, consumer string, evt event.Event, apply func(ctx context.Context, evt event.Event, store storage.ProjectionStore) error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return false, fmt.Errorf("consumer name is required")
	}
	if strings.TrimSpace(evt.PlayerID) == "" {
		return false, fmt.Errorf("player id is required")
	}
	if evt.Seq == 0 {
		return false, fmt.Errorf("event seq must be greater than zero")
	}
	if apply == nil {
		return false, fmt.Errorf("apply callback is required")
	}

	var lastErr error
	for attempt := 0; attempt < maxBusyRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return false, err
			}
		}
		applied, err := s.applyEventInTx(ctx, consumer, evt, apply)
		if err == nil {
			return applied, nil
		}
		if !isSQLiteBusyError(err) {
			return false, err
		}
		lastErr = err
	}
	return false, fmt.Errorf("projection apply for %s/%d remained busy: %w", evt.PlayerID, evt.Seq, lastErr)
}

func (s *Store) applyEventInTx(ctx context.Context, consumer string, evt event.Event, apply func(ctx context.Context, evt event.Event, store storage.ProjectionStore) error) (bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin projection apply tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO projection_apply_checkpoints (consumer, player_id, seq, event_type, applied_at)
		 VALUES (?, ?, ?, ?, ?)`,
		consumer,
		evt.PlayerID,
		int64(evt.Seq),
		string(evt.Type),
		toMillis(time.Now().UTC()),
	)
	if err != nil {
		return false, fmt.Errorf("reserve projection apply checkpoint %s/%d: %w", evt.PlayerID, evt.Seq, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve projection apply checkpoint %s/%d: %w", evt.PlayerID, evt.Seq, err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := apply(ctx, evt, s.withTx(tx)); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit projection apply tx: %w", err)
	}
	return true, nil
}

func waitForRetry(ctx context.Context, attempt int) error {
	timer := time.NewTimer(retryBaseDelay * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetProjectionWatermark returns the highest contiguously applied ledger seq
// for a player. Returns storage.ErrNotFound when no events were applied yet.
func (s *Store) GetProjectionWatermark(ctx context.Context, playerID string) (storage.ProjectionWatermark, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProjectionWatermark{}, err
	}
	if s == nil || s.db == nil {
		return storage.ProjectionWatermark{}, fmt.Errorf("storage is not configured")
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return storage.ProjectionWatermark{}, fmt.Errorf("player id is required")
	}

	var (
		wm         storage.ProjectionWatermark
		appliedSeq int64
		updatedAt  int64
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT player_id, applied_seq, updated_at FROM projection_watermarks WHERE player_id = ?`,
		playerID,
	).Scan(&wm.PlayerID, &appliedSeq, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ProjectionWatermark{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ProjectionWatermark{}, fmt.Errorf("get projection watermark: %w", err)
	}
	wm.AppliedSeq = uint64(appliedSeq)
	wm.UpdatedAt = fromMillis(updatedAt)
	return wm, nil
}

// SaveProjectionWatermark upserts the per-player apply watermark.
func (s *Store) SaveProjectionWatermark(ctx context.Context, wm storage.ProjectionWatermark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	wm.PlayerID = strings.TrimSpace(wm.PlayerID)
	if wm.PlayerID == "" {
		return fmt.Errorf("player id is required")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projection_watermarks (player_id, applied_seq, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		     applied_seq = excluded.applied_seq,
		     updated_at = excluded.updated_at`,
		wm.PlayerID,
		int64(wm.AppliedSeq),
		toMillis(wm.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save projection watermark: %w", err)
	}
	return nil
}

// ListProjectionWatermarks returns all per-player watermarks ordered by player.
func (s *Store) ListProjectionWatermarks(ctx context.Context) ([]storage.ProjectionWatermark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT player_id, applied_seq, updated_at FROM projection_watermarks ORDER BY player_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projection watermarks: %w", err)
	}
	defer rows.Close()

	var watermarks []storage.ProjectionWatermark
	for rows.Next() {
		var (
			wm         storage.ProjectionWatermark
			appliedSeq int64
			updatedAt  int64
		)
		if err := rows.Scan(&wm.PlayerID, &appliedSeq, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan projection watermark: %w", err)
		}
		wm.AppliedSeq = uint64(appliedSeq)
		wm.UpdatedAt = fromMillis(updatedAt)
		watermarks = append(watermarks, wm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projection watermarks: %w", err)
	}
	return watermarks, nil
}
