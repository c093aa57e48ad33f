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

// propagationColumns is the canonical select list for propagation_outbox rows.
const propagationColumns = "id, player_id, punishment_id, source_player_id, source_punishment_id, source_seq, action, reason, status, attempt_count, next_attempt_at, last_error, updated_at"

// enqueuePropagationTasksTx inserts tasks inside an append transaction so the
// side effect commits or rolls back with its causing event. source_seq records
// the ledger position of that event; re-appending the same event re-enqueues
// nothing.
func enqueuePropagationTasksTx(ctx context.Context, tx *sql.Tx, evt event.Event, tasks []storage.PropagationTask) error {
	// Tasks are due at the causing event's timestamp, keeping append and
	// delivery on the caller's clock.
	enqueuedAt := evt.Timestamp.UTC()
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}
	for _, task := range tasks {
		if err := validatePropagationTask(task); err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO propagation_outbox (
			    id, player_id, punishment_id, source_player_id, source_punishment_id,
			    source_seq, action, reason, status, attempt_count, next_attempt_at,
			    last_error, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', 0, ?, '', ?)
			ON CONFLICT DO NOTHING`,
			task.ID,
			task.PlayerID,
			task.PunishmentID,
			task.SourcePlayerID,
			task.SourcePunishmentID,
			int64(evt.Seq),
			string(task.Action),
			task.Reason,
			toMillis(enqueuedAt),
			toMillis(enqueuedAt),
		); err != nil {
			return fmt.Errorf("enqueue propagation task %s: %w", task.ID, err)
		}
	}
	return nil
}

// EnqueuePropagationTasks adds tasks outside an append transaction, for
// backfill tooling. Enqueueing an existing task id is a no-op.
func (s *Store) EnqueuePropagationTasks(ctx context.Context, tasks []storage.PropagationTask, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	for _, task := range tasks {
		if err := validatePropagationTask(task); err != nil {
			return err
		}
		if _, err := s.sqlDB.ExecContext(
			ctx,
			`INSERT INTO propagation_outbox (
			    id, player_id, punishment_id, source_player_id, source_punishment_id,
			    source_seq, action, reason, status, attempt_count, next_attempt_at,
			    last_error, updated_at
			) VALUES (?, ?, ?, ?, ?, 0, ?, ?, 'pending', 0, ?, '', ?)
			ON CONFLICT DO NOTHING`,
			task.ID,
			task.PlayerID,
			task.PunishmentID,
			task.SourcePlayerID,
			task.SourcePunishmentID,
			string(task.Action),
			task.Reason,
			toMillis(now),
			toMillis(now),
		); err != nil {
			return fmt.Errorf("enqueue propagation task %s: %w", task.ID, err)
		}
	}
	return nil
}

func validatePropagationTask(task storage.PropagationTask) error {
	if strings.TrimSpace(task.ID) == "" {
		return fmt.Errorf("propagation task id is required")
	}
	if strings.TrimSpace(task.PlayerID) == "" {
		return fmt.Errorf("propagation task player id is required")
	}
	if strings.TrimSpace(task.PunishmentID) == "" {
		return fmt.Errorf("propagation task punishment id is required")
	}
	if strings.TrimSpace(task.SourcePunishmentID) == "" {
		return fmt.Errorf("propagation task source punishment id is required")
	}
	if strings.TrimSpace(string(task.Action)) == "" {
		return fmt.Errorf("propagation task action is required")
	}
	return nil
}

// ClaimDuePropagationTasks leases due tasks to the calling worker. Stale
// processing rows past the lease window are reclaimed so a crashed worker
// cannot strand deliveries.
func (s *Store) ClaimDuePropagationTasks(ctx context.Context, now time.Time, limit int) ([]storage.ClaimedPropagationTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin propagation claim tx: %w", err)
	}
	defer tx.Rollback()

	staleBefore := now.Add(-outboxProcessingLease)
	rows, err := tx.QueryContext(
		ctx,
		`SELECT `+propagationColumns+`
		 FROM propagation_outbox
		 WHERE (
			 status IN ('pending', 'failed') AND next_attempt_at <= ?
		 ) OR (
			 status = 'processing' AND updated_at <= ?
		 )
		 ORDER BY next_attempt_at, id
		 LIMIT ?`,
		toMillis(now),
		toMillis(staleBefore),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due propagation tasks: %w", err)
	}
	defer rows.Close()

	candidates := make([]storage.ClaimedPropagationTask, 0, limit)
	for rows.Next() {
		task, err := scanPropagationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due propagation task: %w", err)
		}
		candidates = append(candidates, storage.ClaimedPropagationTask{
			PropagationTask: task.PropagationTask,
			SourceSeq:       task.SourceSeq,
			AttemptCount:    task.AttemptCount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due propagation tasks: %w", err)
	}

	claimed := make([]storage.ClaimedPropagationTask, 0, len(candidates))
	for _, candidate := range candidates {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE propagation_outbox
			 SET status = 'processing', updated_at = ?
			 WHERE id = ?
			   AND (
			   	(status IN ('pending', 'failed') AND next_attempt_at <= ?)
			   	OR (status = 'processing' AND updated_at <= ?)
			   )`,
			toMillis(now),
			candidate.ID,
			toMillis(now),
			toMillis(staleBefore),
		)
		if err != nil {
			return nil, fmt.Errorf("claim propagation task %s: %w", candidate.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim propagation task rows affected %s: %w", candidate.ID, err)
		}
		if affected == 1 {
			claimed = append(claimed, candidate)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit propagation claim tx: %w", err)
	}
	return claimed, nil
}

// CompletePropagationTask removes a delivered task.
func (s *Store) CompletePropagationTask(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return fmt.Errorf("propagation task id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM propagation_outbox WHERE id = ? AND status = 'processing'`,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("complete propagation task %s: %w", taskID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete propagation task rows affected %s: %w", taskID, err)
	}
	if affected != 1 {
		return fmt.Errorf("complete propagation task %s: expected 1 row deleted, got %d", taskID, affected)
	}
	return nil
}

// MarkPropagationTaskFailed schedules a retry or dead-letters the task. The
// worker owns the backoff policy; the store only enforces the processing
// guard so a stale worker cannot clobber a reclaimed task.
func (s *Store) MarkPropagationTaskFailed(ctx context.Context, failure storage.PropagationTaskFailure, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	taskID := strings.TrimSpace(failure.TaskID)
	if taskID == "" {
		return fmt.Errorf("propagation task id is required")
	}
	if failure.Attempt <= 0 {
		return fmt.Errorf("propagation attempt must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	nextAttempt := failure.NextAttemptAt
	if nextAttempt.IsZero() {
		nextAttempt = now
	}

	status := "failed"
	if failure.Dead {
		status = "dead"
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE propagation_outbox
		 SET status = ?,
		     attempt_count = ?,
		     next_attempt_at = ?,
		     last_error = ?,
		     updated_at = ?
		 WHERE id = ? AND status = 'processing'`,
		status,
		failure.Attempt,
		toMillis(nextAttempt),
		failure.LastError,
		toMillis(now),
		taskID,
	)
	if err != nil {
		return fmt.Errorf("mark propagation task failed %s: %w", taskID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark propagation task failed rows affected %s: %w", taskID, err)
	}
	if affected != 1 {
		return fmt.Errorf("mark propagation task failed %s: expected 1 row updated, got %d", taskID, affected)
	}
	return nil
}

// RequeuePropagationTask transitions one dead task back to pending.
func (s *Store) RequeuePropagationTask(ctx context.Context, taskID string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return false, fmt.Errorf("propagation task id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE propagation_outbox
		 SET status = 'pending',
		     attempt_count = 0,
		     next_attempt_at = ?,
		     last_error = '',
		     updated_at = ?
		 WHERE id = ? AND status = 'dead'`,
		toMillis(now),
		toMillis(now),
		taskID,
	)
	if err != nil {
		return false, fmt.Errorf("requeue dead propagation task %s: %w", taskID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("requeue dead propagation task rows affected %s: %w", taskID, err)
	}
	if affected == 0 {
		return false, nil
	}
	if affected != 1 {
		return false, fmt.Errorf("requeue dead propagation task %s: expected at most 1 row updated, got %d", taskID, affected)
	}
	return true, nil
}

// RequeueDeadPropagationTasks transitions up to limit dead tasks back to
// pending in deterministic retry order.
func (s *Store) RequeueDeadPropagationTasks(ctx context.Context, limit int, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return 0, fmt.Errorf("propagation requeue limit must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`WITH to_requeue AS (
			SELECT id
			FROM propagation_outbox
			WHERE status = 'dead'
			ORDER BY next_attempt_at ASC, id ASC
			LIMIT ?
		)
		UPDATE propagation_outbox
		SET status = 'pending',
		    attempt_count = 0,
		    next_attempt_at = ?,
		    last_error = '',
		    updated_at = ?
		WHERE status = 'dead'
		  AND EXISTS (
			  SELECT 1
			  FROM to_requeue
			  WHERE to_requeue.id = propagation_outbox.id
		  )`,
		limit,
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue dead propagation tasks: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue dead propagation tasks affected: %w", err)
	}
	if affected < 0 {
		return 0, fmt.Errorf("requeue dead propagation tasks affected returned negative value: %d", affected)
	}
	return int(affected), nil
}

// GetPropagationOutboxSummary returns queue depth by status and the oldest
// retry-eligible task metadata.
func (s *Store) GetPropagationOutboxSummary(ctx context.Context) (storage.PropagationOutboxSummary, error) {
	if err := ctx.Err(); err != nil {
		return storage.PropagationOutboxSummary{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PropagationOutboxSummary{}, fmt.Errorf("storage is not configured")
	}

	summary := storage.PropagationOutboxSummary{}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT status, COUNT(*)
		 FROM propagation_outbox
		 GROUP BY status`,
	)
	if err != nil {
		return storage.PropagationOutboxSummary{}, fmt.Errorf("query propagation summary counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return storage.PropagationOutboxSummary{}, fmt.Errorf("scan propagation summary count: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(status)) {
		case "pending":
			summary.PendingCount = count
		case "processing":
			summary.ProcessingCount = count
		case "failed":
			summary.FailedCount = count
		case "dead":
			summary.DeadCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return storage.PropagationOutboxSummary{}, fmt.Errorf("iterate propagation summary counts: %w", err)
	}

	var (
		taskID      string
		nextAttempt int64
	)
	err = s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, next_attempt_at
		 FROM propagation_outbox
		 WHERE status IN ('pending', 'failed')
		 ORDER BY next_attempt_at ASC, id ASC
		 LIMIT 1`,
	).Scan(&taskID, &nextAttempt)
	if err == nil {
		summary.OldestPendingID = taskID
		summary.OldestPendingAt = fromMillis(nextAttempt)
		return summary, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return summary, nil
	}
	return storage.PropagationOutboxSummary{}, fmt.Errorf("query oldest pending propagation task: %w", err)
}

// ListPropagationTasks lists task rows optionally filtered by status.
func (s *Store) ListPropagationTasks(ctx context.Context, status string, limit int) ([]storage.PropagationOutboxEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return []storage.PropagationOutboxEntry{}, nil
	}

	normalizedStatus, err := normalizeOutboxStatus(status)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if normalizedStatus == "" {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT `+propagationColumns+`
			 FROM propagation_outbox
			 ORDER BY next_attempt_at ASC, id ASC
			 LIMIT ?`,
			limit,
		)
	} else {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT `+propagationColumns+`
			 FROM propagation_outbox
			 WHERE status = ?
			 ORDER BY next_attempt_at ASC, id ASC
			 LIMIT ?`,
			normalizedStatus,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list propagation tasks: %w", err)
	}
	defer rows.Close()

	entries := make([]storage.PropagationOutboxEntry, 0, limit)
	for rows.Next() {
		entry, err := scanPropagationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan propagation task: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate propagation tasks: %w", err)
	}
	return entries, nil
}

func scanPropagationRow(row rowScanner) (storage.PropagationOutboxEntry, error) {
	var (
		entry       storage.PropagationOutboxEntry
		action      string
		sourceSeq   int64
		nextAttempt int64
		updatedAt   int64
		lastError   sql.NullString
	)
	if err := row.Scan(
		&entry.ID,
		&entry.PlayerID,
		&entry.PunishmentID,
		&entry.SourcePlayerID,
		&entry.SourcePunishmentID,
		&sourceSeq,
		&action,
		&entry.Reason,
		&entry.Status,
		&entry.AttemptCount,
		&nextAttempt,
		&lastError,
		&updatedAt,
	); err != nil {
		return storage.PropagationOutboxEntry{}, err
	}
	entry.Action = storage.PropagationAction(action)
	entry.SourceSeq = uint64(sourceSeq)
	entry.NextAttemptAt = fromMillis(nextAttempt)
	entry.UpdatedAt = fromMillis(updatedAt)
	if lastError.Valid {
		entry.LastError = lastError.String
	}
	return entry, nil
}
